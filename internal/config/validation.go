package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/internal/proxy"
	urlutil "github.com/law-makers/lotscout/internal/utils/url"
	"github.com/law-makers/lotscout/pkg/models"
)

func validate(c *Config) error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Renderer {
	case models.RendererChrome, models.RendererRod, models.RendererStatic:
	default:
		return fmt.Errorf("renderer must be chrome, rod, or static, got %q", c.Renderer)
	}
	switch c.DetailPolicy {
	case models.DetailAlways, models.DetailAuto:
	default:
		return fmt.Errorf("detail policy must be always or auto, got %q", c.DetailPolicy)
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.Settle < 0 {
		return fmt.Errorf("settle delay must be >= 0")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be > 0 with burst >= 1")
	}
	if c.Limit < 0 || c.PerQueryLimit < 0 {
		return fmt.Errorf("limits must be >= 0")
	}
	if c.YearMin > c.YearMax {
		return fmt.Errorf("year range %d-%d is empty", c.YearMin, c.YearMax)
	}
	if c.MileageCeiling <= 0 {
		return fmt.Errorf("mileage ceiling must be > 0")
	}
	if jurisdiction.NewSet(c.AllowedStates...).Len() == 0 {
		return fmt.Errorf("at least one allowed state is required")
	}
	if c.Make == "" || c.Model == "" {
		return fmt.Errorf("make and model are required")
	}
	if len(c.Queries) == 0 {
		return fmt.Errorf("at least one query is required")
	}
	for _, q := range c.Queries {
		if err := urlutil.ValidateURL(q.URL); err != nil {
			return fmt.Errorf("query %q: %w", q.Name, err)
		}
	}
	for _, p := range c.Proxies {
		if err := proxy.Validate(p); err != nil {
			return err
		}
	}
	if c.MaxImages <= 0 || c.FallbackCount <= 0 {
		return fmt.Errorf("image limits must be > 0")
	}
	if c.PageCacheBytes <= 0 {
		return fmt.Errorf("page cache size must be > 0")
	}
	return nil
}
