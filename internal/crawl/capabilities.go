package crawl

import (
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/internal/common"
	"github.com/dtnitsch/mywi/pkg/capabilities"
)

// CapabilitiesAction prints which optional integrations are usable with the
// current configuration.
func CapabilitiesAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	return common.PrintYAML(capabilities.Discover(c.Context, env.Config, env.Logger))
}
