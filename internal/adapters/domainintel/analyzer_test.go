package domainintel

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeResolver struct {
	records []*net.MX
	err     error
	calls   int
}

func (f *fakeResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	f.calls++
	return f.records, f.err
}

func defaultConfig() Config {
	return Config{
		TrustedDomains: []string{"example.com"},
		Blocklist:      DefaultBlocklist,
		Brands:         DefaultBrands,
		SuspiciousTLDs: DefaultSuspiciousTLDs,
	}
}

func TestAnalyzeSender(t *testing.T) {
	a := NewAnalyzer(defaultConfig(), nil, zaptest.NewLogger(t))

	tests := []struct {
		name     string
		sender   string
		want     int
		findings []string
	}{
		{"trusted domain", "alice@example.com", 100, []string{"Trusted domain"}},
		{"trusted subdomain", "alice@mail.example.com", 100, []string{"Trusted domain"}},
		{"clean domain", "bob@acme-corp.io", 100, []string{}},
		{"brand itself", "noreply@paypal.com", 100, []string{}},
		{"typosquat", "support@paypa1.com", 60, []string{"Possible impersonation of paypal.com"}},
		{"blocklisted with bad tld", "x@phishing-test.tk", 25, []string{
			"Domain found in blocklist",
			"Suspicious top-level domain (.tk)",
		}},
		{"embedded brand with bad tld", "x@secure-paypal-login.tk", 25, []string{
			"Possible impersonation of paypal.com",
			"Suspicious top-level domain (.tk)",
			"Unusual domain structure",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := a.AnalyzeSender(context.Background(), tt.sender)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Score)
			assert.Equal(t, tt.findings, out.Findings)
		})
	}
}

func TestAnalyzeSenderSummary(t *testing.T) {
	a := NewAnalyzer(defaultConfig(), nil, zaptest.NewLogger(t))

	out, err := a.AnalyzeSender(context.Background(), "bob@acme-corp.io")
	require.NoError(t, err)
	assert.Equal(t, "Domain: acme-corp.io | Trust Score: 100/100 | Factors: None", out.Summary)
}

func TestAnalyzeSenderErrors(t *testing.T) {
	a := NewAnalyzer(defaultConfig(), nil, zaptest.NewLogger(t))

	_, err := a.AnalyzeSender(context.Background(), "no-domain")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.AnalyzeSender(ctx, "bob@acme-corp.io")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMXCheck(t *testing.T) {
	cfg := defaultConfig()
	cfg.CheckMX = true

	t.Run("no records", func(t *testing.T) {
		r := &fakeResolver{}
		out, err := NewAnalyzer(cfg, r, zaptest.NewLogger(t)).AnalyzeSender(context.Background(), "bob@acme-corp.io")
		require.NoError(t, err)
		assert.Equal(t, 85, out.Score)
		assert.Contains(t, out.Findings, "Invalid or missing MX records")
	})

	t.Run("domain not found", func(t *testing.T) {
		r := &fakeResolver{err: &net.DNSError{Err: "no such host", Name: "acme-corp.io", IsNotFound: true}}
		out, err := NewAnalyzer(cfg, r, zaptest.NewLogger(t)).AnalyzeSender(context.Background(), "bob@acme-corp.io")
		require.NoError(t, err)
		assert.Equal(t, 85, out.Score)
	})

	t.Run("transient failure is ignored", func(t *testing.T) {
		r := &fakeResolver{err: errors.New("server misbehaving")}
		out, err := NewAnalyzer(cfg, r, zaptest.NewLogger(t)).AnalyzeSender(context.Background(), "bob@acme-corp.io")
		require.NoError(t, err)
		assert.Equal(t, 100, out.Score)
	})

	t.Run("records present", func(t *testing.T) {
		r := &fakeResolver{records: []*net.MX{{Host: "mx.acme-corp.io.", Pref: 10}}}
		out, err := NewAnalyzer(cfg, r, zaptest.NewLogger(t)).AnalyzeSender(context.Background(), "bob@acme-corp.io")
		require.NoError(t, err)
		assert.Equal(t, 100, out.Score)
	})

	t.Run("disabled", func(t *testing.T) {
		r := &fakeResolver{}
		cfg := defaultConfig()
		_, err := NewAnalyzer(cfg, r, zaptest.NewLogger(t)).AnalyzeSender(context.Background(), "bob@acme-corp.io")
		require.NoError(t, err)
		assert.Zero(t, r.calls)
	})
}

func TestUnusualStructure(t *testing.T) {
	assert.True(t, unusualStructure("xn--pypal-4ve.com"))
	assert.True(t, unusualStructure("a.b.c.d.com"))
	assert.True(t, unusualStructure("secure-login-now.com"))
	assert.False(t, unusualStructure("mail.acme.com"))
}
