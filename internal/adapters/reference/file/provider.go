// Package file loads exchange rates and visa rulesets from a YAML reference
// file and hot-reloads it on change.
//
//	rates:
//	  - { from: USD, to: EUR, rate: "0.92" }
//	visa:
//	  - origin_country: MX
//	    destination_country: US
//	    visa_required: true
//	    required_documents: [passport]
//	    cost: { value: "185", currency: USD }
package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	ratesstatic "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/rates/static"
	visastatic "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/visa/static"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// Data is one parsed reference file.
type Data struct {
	Rates    map[ratesstatic.Pair]decimal.Decimal
	Visa     []domain.VisaRuleset
	LoadedAt time.Time
}

// Apply installs the data into the static services. Either may be nil.
func (d *Data) Apply(rates *ratesstatic.Service, visa *visastatic.Service) error {
	if rates != nil && len(d.Rates) > 0 {
		if err := rates.Replace(d.Rates); err != nil {
			return err
		}
	}
	if visa != nil && len(d.Visa) > 0 {
		if err := visa.Replace(d.Visa); err != nil {
			return err
		}
	}
	return nil
}

type rateEntry struct {
	From string `koanf:"from"`
	To   string `koanf:"to"`
	Rate string `koanf:"rate"`
}

type amountEntry struct {
	Value    string `koanf:"value"`
	Currency string `koanf:"currency"`
}

type visaEntry struct {
	OriginCountry      string       `koanf:"origin_country"`
	DestinationCountry string       `koanf:"destination_country"`
	VisaRequired       bool         `koanf:"visa_required"`
	VisaType           string       `koanf:"visa_type"`
	RequiredDocuments  []string     `koanf:"required_documents"`
	ProcessingTimeDays *int         `koanf:"processing_time_days"`
	Cost               *amountEntry `koanf:"cost"`
	MaxStayDays        *int         `koanf:"max_stay_days"`
	Notes              string       `koanf:"notes"`
}

// Provider reads the reference file and watches it for changes.
type Provider struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	mu      sync.RWMutex
	current *Data
}

// NewProvider creates a reference file provider.
func NewProvider(path string, logger *slog.Logger) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("reference path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{path: path, logger: logger}, nil
}

// Current returns the last successfully loaded data, or nil.
func (p *Provider) Current() *Data {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Load parses the reference file.
func (p *Provider) Load(ctx context.Context) (*Data, error) {
	data, err := parse(p.path)
	if err != nil {
		return nil, fmt.Errorf("load reference data from %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.current = data
	p.mu.Unlock()

	p.logger.Info("reference data loaded",
		slog.String("path", p.path),
		slog.Int("rates", len(data.Rates)),
		slog.Int("visa_rulesets", len(data.Visa)))
	return data, nil
}

func parse(path string) (*Data, error) {
	k := koanf.New(".")
	if err := k.Load(kfile.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}

	var rates []rateEntry
	if err := k.Unmarshal("rates", &rates); err != nil {
		return nil, fmt.Errorf("rates: %w", err)
	}
	var visa []visaEntry
	if err := k.Unmarshal("visa", &visa); err != nil {
		return nil, fmt.Errorf("visa: %w", err)
	}

	out := &Data{
		Rates:    make(map[ratesstatic.Pair]decimal.Decimal, len(rates)),
		LoadedAt: time.Now(),
	}
	for i, r := range rates {
		if !domain.ValidCurrency(r.From) || !domain.ValidCurrency(r.To) {
			return nil, fmt.Errorf("rates[%d]: invalid currency pair %q/%q", i, r.From, r.To)
		}
		v, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}
		if !v.IsPositive() {
			return nil, fmt.Errorf("rates[%d]: rate must be positive", i)
		}
		out.Rates[ratesstatic.Pair{From: r.From, To: r.To}] = v
	}
	for i, v := range visa {
		rs := domain.VisaRuleset{
			OriginCountry:      v.OriginCountry,
			DestinationCountry: v.DestinationCountry,
			VisaRequired:       v.VisaRequired,
			VisaType:           v.VisaType,
			RequiredDocuments:  v.RequiredDocuments,
			ProcessingTimeDays: v.ProcessingTimeDays,
			MaxStayDays:        v.MaxStayDays,
			Notes:              v.Notes,
		}
		if v.Cost != nil {
			amount, err := decimal.NewFromString(v.Cost.Value)
			if err != nil {
				return nil, fmt.Errorf("visa[%d].cost: %w", i, err)
			}
			rs.Cost = &domain.MonetaryAmount{Value: amount, Currency: v.Cost.Currency}
			if err := rs.Cost.Validate(); err != nil {
				return nil, fmt.Errorf("visa[%d].cost: %w", i, err)
			}
		}
		out.Visa = append(out.Visa, rs)
	}
	return out, nil
}

// Watch reloads the file when it changes and calls onChange with the new
// data. A file that fails to parse is logged and the previous data kept.
func (p *Provider) Watch(ctx context.Context, onChange func(*Data)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	p.mu.Lock()
	p.watcher = watcher
	p.mu.Unlock()

	// Watch the directory so editors that replace the file are seen too.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", p.path, err)
	}
	target := filepath.Clean(p.path)

	p.logger.Info("watching reference data for changes", slog.String("path", p.path))

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("reference watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				p.logger.Info("reference data changed, reloading", slog.String("path", event.Name))
				data, err := p.Load(ctx)
				if err != nil {
					p.logger.Error("failed to reload reference data",
						slog.String("error", err.Error()),
						slog.String("path", p.path))
					continue
				}
				onChange(data)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Error("reference watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops watching the file.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
