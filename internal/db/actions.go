package db

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/internal/common"
	"github.com/dtnitsch/mywi/internal/land"
	"github.com/dtnitsch/mywi/models"
	dbpkg "github.com/dtnitsch/mywi/pkg/db"
)

const titleWidth = 60

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

// FrontierAction lists the expressions a crawl would pick next.
func FrontierAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := land.Resolve(c, env.DB, c.String("land"))
	if err != nil {
		return err
	}

	filter := dbpkg.FrontierFilter{Limit: c.Int("limit")}
	if c.IsSet("http") {
		status := c.Int("http")
		filter.HTTPStatus = &status
	}
	if c.IsSet("depth") {
		depth := c.Int("depth")
		filter.Depth = &depth
	}

	exprs, err := env.DB.ExpressionsToCrawl(c.Context, l.ID, filter)
	if err != nil {
		return fmt.Errorf("failed to list frontier: %w", err)
	}
	if len(exprs) == 0 {
		fmt.Println("Frontier is empty")
		return nil
	}

	t := newTable(table.Row{"ID", "Depth", "HTTP", "Added", "URL"})
	for _, e := range exprs {
		t.AppendRow(table.Row{e.ID, e.Depth, e.HTTPStatus, humanize.Time(e.CreatedAt), e.URL})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(exprs)})
	t.Render()
	return nil
}

// ExpressionsAction lists evaluated expressions by relevance.
func ExpressionsAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := land.Resolve(c, env.DB, c.String("land"))
	if err != nil {
		return err
	}

	exprs, err := env.DB.ListExpressions(c.Context, dbpkg.ExpressionQuery{
		LandID:            l.ID,
		IncludeIrrelevant: c.Bool("all"),
		MinRelevance:      c.Float64("min-relevance"),
		ApprovedOnly:      true,
		Limit:             c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("failed to list expressions: %w", err)
	}
	if len(exprs) == 0 {
		fmt.Println("No expressions found")
		return nil
	}

	t := newTable(table.Row{"ID", "Relevance", "Depth", "Lang", "Source", "Title", "URL"})
	for _, e := range exprs {
		t.AppendRow(table.Row{
			e.ID, humanize.FtoaWithDigits(e.Relevance, 2), e.Depth, e.Language,
			e.ExtractionSource, truncate(e.Title, titleWidth), e.URL,
		})
	}
	t.Render()
	return nil
}

type mediaView struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

type linkView struct {
	TargetID int64  `yaml:"target_id"`
	Anchor   string `yaml:"anchor,omitempty"`
	Type     string `yaml:"type,omitempty"`
	Rel      string `yaml:"rel,omitempty"`
}

type expressionView struct {
	Expression *models.Expression `yaml:"expression"`
	Readable   string             `yaml:"readable,omitempty"`
	Media      []mediaView        `yaml:"media,omitempty"`
	Links      []linkView         `yaml:"links,omitempty"`
}

// ExpressionAction prints one expression with its media and outgoing links.
func ExpressionAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	id, err := common.ParseID(c.Args().First())
	if err != nil {
		return err
	}
	e, err := env.DB.GetExpression(c.Context, id)
	if err != nil {
		return err
	}

	view := expressionView{Expression: e}
	if c.Bool("readable") {
		view.Readable = e.Readable
	}

	media, err := env.DB.ListMedia(c.Context, id)
	if err != nil {
		return err
	}
	for _, m := range media {
		view.Media = append(view.Media, mediaView{Type: m.Type, URL: m.URL})
	}

	links, err := env.DB.LinksFrom(c.Context, id)
	if err != nil {
		return err
	}
	for _, link := range links {
		view.Links = append(view.Links, linkView{TargetID: link.TargetID, Anchor: link.AnchorText, Type: link.LinkType, Rel: link.Rel})
	}

	return common.PrintYAML(view)
}

// RunsAction lists recorded crawl, consolidation and domain runs.
func RunsAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := land.Resolve(c, env.DB, c.String("land"))
	if err != nil {
		return err
	}

	runs, err := env.DB.ListRuns(c.Context, l.ID, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	t := newTable(table.Row{"ID", "Kind", "Started", "Duration", "Processed", "Updated", "Errors", "Skipped"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID, r.Kind, humanize.Time(r.StartedAt), r.Duration(),
			humanize.Comma(int64(r.Processed)), humanize.Comma(int64(r.Updated)), r.Errors, r.Skipped,
		})
	}
	t.Render()
	return nil
}

// DomainsAction lists the domains of a land.
func DomainsAction(c *cli.Context) error {
	env, err := common.Setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := land.Resolve(c, env.DB, c.String("land"))
	if err != nil {
		return err
	}

	domains, err := env.DB.ListDomains(c.Context, l.ID)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}
	if len(domains) == 0 {
		fmt.Println("No domains found")
		return nil
	}

	t := newTable(table.Row{"ID", "Name", "HTTP", "Lang", "Fetched", "Title"})
	for _, d := range domains {
		fetched := "never"
		if d.FetchedAt != nil {
			fetched = humanize.Time(*d.FetchedAt)
		}
		t.AppendRow(table.Row{d.ID, d.Name, d.HTTPStatus, d.Language, fetched, truncate(d.Title, titleWidth)})
	}
	t.Render()
	return nil
}
