package model

import "time"

// Transaction is a customer order owned by the point-of-sale system.
// The job engine only reads it.
type Transaction struct {
	ID              string            `gorm:"primaryKey;size:64" json:"id"`
	CustomerName    string            `gorm:"size:256;not null" json:"customerName"`
	Contact         string            `gorm:"size:64" json:"contact"`
	ServiceQuantity int               `gorm:"not null" json:"serviceQuantity"`
	Items           []TransactionItem `gorm:"foreignKey:TransactionID" json:"items"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// TransactionItem is a consumable line on a transaction.
type TransactionItem struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	TransactionID string `gorm:"size:64;index;not null" json:"-"`
	Name          string `gorm:"size:256;not null" json:"name"`
	Quantity      int    `gorm:"not null" json:"quantity"`
}

// FormatSettings is the store branding maintained by the back office.
type FormatSettings struct {
	ID           int64  `gorm:"primaryKey" json:"-"`
	StoreName    string `gorm:"size:256" json:"storeName"`
	StoreAddress string `gorm:"size:512" json:"storeAddress"`
	StorePhone   string `gorm:"size:64" json:"storePhone"`
	Footer       string `gorm:"size:512" json:"footer"`
}
