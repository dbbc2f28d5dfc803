package session

import (
	"context"
	"fmt"

	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/config"
)

const report_provider_get = "provider.get-or-create"

// Provider hands out authenticated sessions, reusing the session saved at
// Config.SessionPath while the DMS still accepts it.
type Provider struct {
	Config    config.Config
	Telemetry telemetry.API
	Options   Options
}

func (p Provider) options() Options {
	opts := p.Options
	if opts.Telemetry == nil {
		opts.Telemetry = p.Telemetry
	}
	return opts
}

// GetOrCreate returns a session with the service object header set to
// serviceObject. At most one login happens per call and none when the saved
// session is still valid.
func (p Provider) GetOrCreate(ctx context.Context, serviceObject string) (*Session, error) {
	err := p.Config.Validate()
	if err != nil {
		return nil, err
	}
	opts := p.options()
	tel := telemetry.NewScopedAPI("revnext_session", opts.telemetry())

	s, err := Load(p.Config.BaseUrl, p.Config.SessionPath, opts)
	if err != nil {
		tel.ReportWarning(report_provider_get, fmt.Errorf("load saved session: %w", err))
	}
	if s != nil && IsValid(ctx, s) {
		tel.ReportDebug("reusing saved session", p.Config.SessionPath)
		s.SetServiceObject(serviceObject)
		return s, nil
	}

	return p.login(ctx, serviceObject, opts)
}

// Refresh ignores any saved session and always logs in again.
func (p Provider) Refresh(ctx context.Context, serviceObject string) (*Session, error) {
	err := p.Config.Validate()
	if err != nil {
		return nil, err
	}
	return p.login(ctx, serviceObject, p.options())
}

func (p Provider) login(ctx context.Context, serviceObject string, opts Options) (*Session, error) {
	s, err := Login(ctx, p.Config.BaseUrl, p.Config.Username, p.Config.Password, opts)
	if err != nil {
		return nil, err
	}
	err = Save(s, p.Config.BaseUrl, p.Config.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.SetServiceObject(serviceObject)
	return s, nil
}
