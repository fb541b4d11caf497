package internal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func validConfig() *Config {
	return &Config{
		ID: "alice",
		Feishu: FeishuConfig{
			AppInfo: FeishuAppInfo{AppID: "cli_123", AppSecret: "secret"},
			Tokens:  Credential{AccessToken: "t", ExpiresAt: now.Add(time.Hour)},
		},
		Outlook: OutlookConfig{
			AppInfo: OutlookAppInfo{ClientID: "client", ClientSecret: "secret", TenantID: "tenant"},
			Tokens:  Credential{AccessToken: "t", ExpiresAt: now.Add(time.Hour)},
		},
		CalendarPairs: []CalendarPair{
			{FeishuCalendarID: "feishu-cal", OutlookCalendarID: "outlook-cal"},
		},
	}
}

func TestCredentialValid(t *testing.T) {
	assert.True(t, Credential{AccessToken: "t", ExpiresAt: now.Add(time.Minute)}.Valid(now))
	assert.False(t, Credential{AccessToken: "t", ExpiresAt: now.Add(-time.Minute)}.Valid(now))
	assert.False(t, Credential{AccessToken: "t", ExpiresAt: now}.Valid(now))
	assert.False(t, Credential{ExpiresAt: now.Add(time.Minute)}.Valid(now))
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate(now))
	})

	t.Run("expired credential with refresh token is runnable", func(t *testing.T) {
		cfg := validConfig()
		cfg.Feishu.Tokens = Credential{
			AccessToken:  "t",
			RefreshToken: "r",
			ExpiresAt:    now.Add(-time.Hour),
		}
		assert.NoError(t, cfg.Validate(now))
	})

	t.Run("empty calendar ids designate the primary calendar", func(t *testing.T) {
		cfg := validConfig()
		cfg.CalendarPairs = []CalendarPair{{}}
		assert.NoError(t, cfg.Validate(now))
		assert.True(t, cfg.HasUnresolvedPairs())
	})

	for name, breakCfg := range map[string]func(*Config){
		"missing feishu app info":  func(c *Config) { c.Feishu.AppInfo.AppSecret = "" },
		"missing outlook app info": func(c *Config) { c.Outlook.AppInfo.TenantID = "" },
		"no calendar pairs":        func(c *Config) { c.CalendarPairs = nil },
		"expired credential without refresh token": func(c *Config) {
			c.Outlook.Tokens = Credential{AccessToken: "t", ExpiresAt: now.Add(-time.Hour)}
		},
		"duplicate pair": func(c *Config) {
			c.CalendarPairs = append(c.CalendarPairs, c.CalendarPairs[0])
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			breakCfg(cfg)

			err := cfg.Validate(now)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "alice", verr.ConfigID)
		})
	}
}

func TestConfigCredentialAccess(t *testing.T) {
	cfg := validConfig()

	cred := Credential{AccessToken: "fresh", ExpiresAt: now.Add(time.Hour)}
	cfg.SetCredential(RoleFeishu, cred)
	assert.Equal(t, cred, cfg.Credential(RoleFeishu))
	assert.NotEqual(t, cred, cfg.Credential(RoleOutlook))

	cfg.SetCredential(RoleOutlook, cred)
	assert.Equal(t, cred, cfg.Credential(RoleOutlook))
}
