package land

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/internal/common"
	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/db"
)

// Resolve finds a land by numeric id or by name.
func Resolve(c *cli.Context, database *db.DB, ref string) (*models.Land, error) {
	if ref == "" {
		return nil, fmt.Errorf("a land is required (--land <id|name>)")
	}
	if id, err := common.ParseID(ref); err == nil {
		return database.GetLand(c.Context, id)
	}
	return database.GetLandByName(c.Context, ref)
}

func CreateAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	langs := common.SplitList(c.String("lang"))
	land, err := env.DB.CreateLand(c.Context, models.Land{
		Name:        c.String("name"),
		Description: c.String("desc"),
		Languages:   langs,
		CrawlDepth:  c.Int("depth"),
		CrawlSize:   c.Int("size"),
	})
	if err != nil {
		return err
	}
	env.Logger.Info("Land created", "land_id", land.ID, "name", land.Name, "languages", land.Languages)
	return common.PrintYAML(land)
}

func ListAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	lands, err := env.DB.ListLands(c.Context)
	if err != nil {
		return err
	}
	if len(lands) == 0 {
		fmt.Println("No lands found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Languages", "Depth", "Size", "Expressions", "Pending", "Created"})
	for _, l := range lands {
		total, err := env.DB.CountExpressions(c.Context, l.ID)
		if err != nil {
			return err
		}
		pending, err := env.DB.CountPending(c.Context, l.ID)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			l.ID, l.Name, strings.Join(l.Languages, ","), l.CrawlDepth, l.CrawlSize,
			humanize.Comma(int64(total)), humanize.Comma(int64(pending)), humanize.Time(l.CreatedAt),
		})
	}
	t.Render()
	return nil
}

func AddTermAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	land, err := Resolve(c, env.DB, c.String("land"))
	if err != nil {
		return err
	}
	terms := common.SplitList(c.String("terms"))
	if len(terms) == 0 {
		return fmt.Errorf("no terms given (--terms \"a, b\")")
	}

	added, err := env.DB.AddTermsToLand(c.Context, land.ID, terms, land.PrimaryLanguage(), c.Float64("weight"))
	if err != nil {
		return err
	}
	env.Logger.Info("Terms added", "land_id", land.ID, "requested", len(terms), "added", added)
	fmt.Printf("%d of %d terms added to %s\n", added, len(terms), land.Name)
	return nil
}

func AddURLAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	land, err := Resolve(c, env.DB, c.String("land"))
	if err != nil {
		return err
	}
	urls, err := common.ReadURLs(c)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no urls given (--urls or --file)")
	}

	created, err := env.DB.AddSeedURLs(c.Context, land.ID, urls)
	if err != nil {
		return err
	}
	env.Logger.Info("Seed URLs added", "land_id", land.ID, "requested", len(urls), "created", created)
	fmt.Printf("%d new expressions in %s (%d urls given)\n", created, land.Name, len(urls))
	return nil
}

// landSummary is the YAML shape printed by land show.
type landSummary struct {
	Land        *models.Land             `yaml:"land"`
	Dictionary  []models.DictionaryEntry `yaml:"dictionary"`
	Expressions int                      `yaml:"expressions"`
	Pending     int                      `yaml:"pending"`
	Links       int                      `yaml:"links"`
	Domains     int                      `yaml:"domains"`
}

func ShowAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	ref := c.Args().First()
	if ref == "" {
		ref = c.String("land")
	}
	land, err := Resolve(c, env.DB, ref)
	if err != nil {
		return err
	}

	s := landSummary{Land: land}
	if s.Dictionary, err = env.DB.DictionaryForLand(c.Context, land.ID); err != nil {
		return err
	}
	if s.Expressions, err = env.DB.CountExpressions(c.Context, land.ID); err != nil {
		return err
	}
	if s.Pending, err = env.DB.CountPending(c.Context, land.ID); err != nil {
		return err
	}
	if s.Links, err = env.DB.CountLinks(c.Context, land.ID); err != nil {
		return err
	}
	domains, err := env.DB.ListDomains(c.Context, land.ID)
	if err != nil {
		return err
	}
	s.Domains = len(domains)

	return common.PrintYAML(s)
}
