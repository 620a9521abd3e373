package settings

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Key names one of the recognized configuration entries
type Key string

const (
	KeyCommissionRates  Key = "commission_rates"
	KeySequraMilestones Key = "sequra_milestones"
	KeyStripeConfig     Key = "stripe_config"
	KeyHotmartConfig    Key = "hotmart_config"
	KeySequraConfig     Key = "sequra_config"
	KeyCompanyInfo      Key = "company_info"
)

// ErrUnknownKey is returned when a key is outside the recognized set
var ErrUnknownKey = errors.New("unknown setting key")

// ErrNotFound is returned by repositories when the key has no stored row
var ErrNotFound = errors.New("setting not found")

// Keys returns every recognized key
func Keys() []Key {
	return []Key{
		KeyCommissionRates,
		KeySequraMilestones,
		KeyStripeConfig,
		KeyHotmartConfig,
		KeySequraConfig,
		KeyCompanyInfo,
	}
}

// ParseKey validates a raw key name
func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Keys() {
		if k == known {
			return k, nil
		}
	}
	return "", ErrUnknownKey
}

// Setting is a row of the app_settings key-value table
type Setting struct {
	Key         Key            `json:"key" gorm:"primaryKey;type:varchar(64)"`
	Value       datatypes.JSON `json:"value" gorm:"type:jsonb;not null"`
	Description string         `json:"description"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName pins the table name
func (Setting) TableName() string {
	return "app_settings"
}

// RateTable maps role identifiers to fractional commission rates.
// Keys are always lowercase.
type RateTable map[string]float64

// Rate returns the rate for role, or 0 when the role is not configured
func (t RateTable) Rate(role string) float64 {
	return t[strings.ToLower(role)]
}

// Clone returns an independent copy
func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Semantic milestone names, in installment order
const (
	MilestoneInitial = "initial"
	MilestoneSecond  = "second"
	MilestoneFinal   = "final"
)

var milestoneNames = [...]string{MilestoneInitial, MilestoneSecond, MilestoneFinal}

// MilestoneTable maps semantic milestone names to fractional shares of a sale
type MilestoneTable map[string]float64

// Share returns the share for the 1-based milestone index, or 0
func (t MilestoneTable) Share(index int) float64 {
	if index < 1 || index > len(milestoneNames) {
		return 0
	}
	return t[milestoneNames[index-1]]
}

// Clone returns an independent copy
func (t MilestoneTable) Clone() MilestoneTable {
	out := make(MilestoneTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// StripeConfig holds card checkout options
type StripeConfig struct {
	Enabled  bool   `json:"enabled"`
	Currency string `json:"currency"`
}

// HotmartConfig holds marketplace resale options
type HotmartConfig struct {
	Enabled       bool `json:"enabled"`
	GuaranteeDays int  `json:"guarantee_days"`
}

// SequraConfig holds installment financing options
type SequraConfig struct {
	Enabled      bool `json:"enabled"`
	Installments int  `json:"installments"`
}

// CompanyInfo is printed on payout statements
type CompanyInfo struct {
	Name     string `json:"name"`
	TaxID    string `json:"tax_id,omitempty"`
	Address  string `json:"address,omitempty"`
	Currency string `json:"currency"`
}

// Source tells where a resolved value came from
type Source string

const (
	SourceCache   Source = "cache"
	SourceStore   Source = "store"
	SourceDefault Source = "default"
)

// ResolvedSetting is the admin view of a key
type ResolvedSetting struct {
	Key         Key        `json:"key"`
	Value       any        `json:"value"`
	Source      Source     `json:"source"`
	Description string     `json:"description,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
