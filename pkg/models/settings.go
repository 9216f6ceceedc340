package models

// SubjectMapping is one learned subject -> group entry
type SubjectMapping struct {
	Subject   string `db:"subject"`
	GroupName string `db:"group_name"`
}

// CompanySetting holds operator overrides for an email domain
type CompanySetting struct {
	Domain      string `db:"domain" json:"domain"`
	Name        string `db:"name" json:"name"`
	Hidden      bool   `db:"hidden" json:"ignored"`
	Responsible string `db:"responsible" json:"responsible,omitempty"`
}

// GroupConfig holds per-group settings
type GroupConfig struct {
	Name        string `db:"name" json:"-"`
	Responsible string `db:"responsible" json:"responsible,omitempty"`
}
