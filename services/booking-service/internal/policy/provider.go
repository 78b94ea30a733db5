package policy

import (
	"context"
	"errors"
)

// ErrNoPolicy is returned by a Provider that has nothing stored for the tenant.
var ErrNoPolicy = errors.New("no booking policy for tenant")

type Provider interface {
	BookingPolicy(ctx context.Context, tenantID string) (TenantBookingPolicy, error)
}

type staticProvider struct {
	policy TenantBookingPolicy
}

func NewStaticProvider(p TenantBookingPolicy) Provider {
	return &staticProvider{policy: p}
}

func (p *staticProvider) BookingPolicy(_ context.Context, _ string) (TenantBookingPolicy, error) {
	return p.policy, nil
}

type fallbackProvider struct {
	primary  Provider
	fallback TenantBookingPolicy
}

// WithFallback returns def for tenants the primary provider has no policy for.
func WithFallback(primary Provider, def TenantBookingPolicy) Provider {
	return &fallbackProvider{primary: primary, fallback: def}
}

func (p *fallbackProvider) BookingPolicy(ctx context.Context, tenantID string) (TenantBookingPolicy, error) {
	pol, err := p.primary.BookingPolicy(ctx, tenantID)
	if errors.Is(err, ErrNoPolicy) {
		return p.fallback, nil
	}
	if err != nil {
		return TenantBookingPolicy{}, err
	}
	return pol, nil
}
