package models

// Company is a B2B marketplace profile that owns job postings and employs users.
type Company struct {
	BaseModel

	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Industry string `gorm:"type:varchar(120)" json:"industry"`
	Website  string `gorm:"type:text" json:"website"`
	About    string `gorm:"type:text" json:"about"`
	Location string `gorm:"type:varchar(120)" json:"location"`
	Logo     string `gorm:"type:text" json:"logo"`

	Verified bool `gorm:"default:false" json:"verified"`

	Members []User `gorm:"foreignKey:CompanyID" json:"members,omitempty"`
	Jobs    []Job  `gorm:"foreignKey:CompanyID" json:"jobs,omitempty"`
}
