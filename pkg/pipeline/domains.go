package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dtnitsch/mywi/pkg/db"
	"github.com/dtnitsch/mywi/pkg/fetcher"
	"github.com/dtnitsch/mywi/pkg/parser"
)

// CrawlDomains fetches the home page of every domain of a land that was
// never fetched and stores its title, description, keywords and language.
// Failed fetches are recorded with their HTTP status so they are not
// retried on the next run.
func (c *Crawler) CrawlDomains(ctx context.Context, landID int64, limit int) (*Report, error) {
	if c.Pages == nil {
		return nil, fmt.Errorf("no page fetcher configured")
	}
	started := time.Now()
	report := &Report{LandID: landID, Kind: db.RunDomains}

	domains, err := c.Store.DomainsToCrawl(ctx, landID, limit)
	if err != nil {
		return nil, err
	}

	for _, d := range domains {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, report, started, "", nil, err)
		}

		meta := c.domainMeta(ctx, "https://"+d.Name+"/")
		out := ItemOutcome{ExpressionID: d.ID, URL: d.Name, Extracted: meta.HTTPStatus > 0 && meta.HTTPStatus < 400}
		if err := c.Store.UpdateDomainMeta(ctx, d.ID, meta); err != nil {
			out.Err = err
		} else {
			out.Updated = true
		}
		report.add(out)
	}

	return c.finish(ctx, report, started, "", nil, nil)
}

func (c *Crawler) domainMeta(ctx context.Context, homeURL string) db.DomainMeta {
	resp, err := c.Pages.Get(ctx, homeURL)
	if err != nil {
		var meta db.DomainMeta
		if fe, ok := fetcher.AsFetchError(err); ok {
			meta.HTTPStatus = fe.StatusCode
		}
		c.logger().Debug("Domain fetch failed", "url", homeURL, "error", err)
		return meta
	}

	m := parser.ParseMeta(string(resp.Body))
	lang := m.Language
	if detected, _ := c.Detector.Detect(m.Title + ". " + m.Description); detected != "" {
		lang = detected
	}
	return db.DomainMeta{
		Title:       m.Title,
		Description: m.Description,
		Keywords:    m.Keywords,
		Language:    lang,
		HTTPStatus:  resp.StatusCode,
	}
}
