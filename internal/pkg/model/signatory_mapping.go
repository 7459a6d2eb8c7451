package model

type SignatoryMapping struct {
	Id               uint64  `gorm:"primaryKey" json:"id"`
	MultisigConfigId uint64  `json:"-"`
	Address          string  `json:"address"`
	LinkedUserId     *uint64 `json:"linkedUserId"`
	DisplayOrder     int     `json:"displayOrder"`
}

func (SignatoryMapping) TableName() string {
	return "signatory_mapping"
}
