package internal

import (
	"fmt"
	"time"
)

// ProviderRole identifies which side of the sync a provider plays.
type ProviderRole string

const (
	RoleFeishu  ProviderRole = "feishu"
	RoleOutlook ProviderRole = "outlook"
)

func (r ProviderRole) String() string {
	return string(r)
}

// Credential is one provider's OAuth state for one configuration. It is
// owned by the token store of the session holding the configuration and is
// mutated only through refresh.
type Credential struct {
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `yaml:"expires_at"`
}

// Valid reports whether the access token can still be used at now.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// FeishuAppInfo is the Feishu custom-app identity used to refresh user
// tokens.
type FeishuAppInfo struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
}

// OutlookAppInfo is the Azure AD application identity.
type OutlookAppInfo struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TenantID     string `yaml:"tenant_id"`
}

// CalendarPair maps one Feishu calendar onto one Outlook calendar. The same
// calendar may appear in several pairs; a duplicated (source, destination)
// combination only causes redundant API work, never incorrect results. An
// empty calendar ID stands for the provider's primary calendar and is
// resolved through ListCalendars before the first pass.
type CalendarPair struct {
	FeishuCalendarID    string `yaml:"feishu_calendar_id"`
	FeishuCalendarName  string `yaml:"feishu_calendar_name,omitempty"`
	OutlookCalendarID   string `yaml:"outlook_calendar_id"`
	OutlookCalendarName string `yaml:"outlook_calendar_name,omitempty"`
}

func (p CalendarPair) String() string {
	src, dst := p.FeishuCalendarName, p.OutlookCalendarName
	if src == "" {
		src = p.FeishuCalendarID
	}
	if src == "" {
		src = "primary"
	}
	if dst == "" {
		dst = p.OutlookCalendarID
	}
	if dst == "" {
		dst = "primary"
	}
	return fmt.Sprintf("%s -> %s", src, dst)
}

// FeishuConfig and OutlookConfig group each provider's app identity and
// credential in the shape the on-disk YAML uses.
type FeishuConfig struct {
	AppInfo FeishuAppInfo `yaml:"app_info"`
	Tokens  Credential    `yaml:"tokens"`
}

type OutlookConfig struct {
	AppInfo OutlookAppInfo `yaml:"app_info"`
	Tokens  Credential     `yaml:"tokens"`
}

// Config is one tenant's full synchronization setup: both provider
// identities, both credentials, and the calendar pairs to reconcile. One
// session owns one Config; token fields are mutated in place on refresh and
// everything else is read-only during a pass.
type Config struct {
	// ID identifies the configuration in logs and in the run journal.
	// For file-backed configs it is derived from the file name.
	ID string `yaml:"-"`

	Feishu        FeishuConfig   `yaml:"feishu"`
	Outlook       OutlookConfig  `yaml:"outlook"`
	CalendarPairs []CalendarPair `yaml:"calendar_pairs"`
}

// Credential returns the stored credential for role.
func (c *Config) Credential(role ProviderRole) Credential {
	if role == RoleFeishu {
		return c.Feishu.Tokens
	}
	return c.Outlook.Tokens
}

// SetCredential replaces the stored credential for role.
func (c *Config) SetCredential(role ProviderRole, cred Credential) {
	if role == RoleFeishu {
		c.Feishu.Tokens = cred
	} else {
		c.Outlook.Tokens = cred
	}
}

// Validate checks that the configuration is complete enough to admit to the
// scheduler: both app identities, a usable or refreshable credential for
// both providers, and at least one well-formed calendar pair.
func (c *Config) Validate(now time.Time) error {
	if c.Feishu.AppInfo.AppID == "" || c.Feishu.AppInfo.AppSecret == "" {
		return &ValidationError{ConfigID: c.ID, Reason: "missing feishu app info"}
	}
	if c.Outlook.AppInfo.ClientID == "" || c.Outlook.AppInfo.ClientSecret == "" || c.Outlook.AppInfo.TenantID == "" {
		return &ValidationError{ConfigID: c.ID, Reason: "missing outlook app info"}
	}
	if err := c.validateCredential(RoleFeishu, now); err != nil {
		return err
	}
	if err := c.validateCredential(RoleOutlook, now); err != nil {
		return err
	}
	if len(c.CalendarPairs) == 0 {
		return &ValidationError{ConfigID: c.ID, Reason: "no calendar pairs configured"}
	}
	seen := make(map[[2]string]bool, len(c.CalendarPairs))
	for _, pair := range c.CalendarPairs {
		key := [2]string{pair.FeishuCalendarID, pair.OutlookCalendarID}
		if seen[key] {
			return &ValidationError{
				ConfigID: c.ID,
				Reason:   fmt.Sprintf("calendar pair %s is duplicated", pair),
			}
		}
		seen[key] = true
	}
	return nil
}

// HasUnresolvedPairs reports whether any calendar pair still designates a
// primary calendar through an empty ID.
func (c *Config) HasUnresolvedPairs() bool {
	for _, pair := range c.CalendarPairs {
		if pair.FeishuCalendarID == "" || pair.OutlookCalendarID == "" {
			return true
		}
	}
	return false
}

func (c *Config) validateCredential(role ProviderRole, now time.Time) error {
	cred := c.Credential(role)
	if cred.Valid(now) || cred.RefreshToken != "" {
		return nil
	}
	return &ValidationError{
		ConfigID: c.ID,
		Reason:   fmt.Sprintf("%s credential is expired and has no refresh token", role),
	}
}
