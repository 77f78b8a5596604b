package model

import "time"

const (
	ProductActive   = "ACTIVE"
	ProductArchived = "ARCHIVED"
)

// Product prices are stored in minor currency units.
type Product struct {
	ID          string    `db:"id" json:"id"`
	CompanyID   string    `db:"company_id" json:"companyId"`
	SKU         string    `db:"sku" json:"sku"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	Unit        string    `db:"unit" json:"unit"`
	Price       int64     `db:"price" json:"price"`
	MinStock    int64     `db:"min_stock" json:"minStock"`
	Stock       int64     `db:"stock" json:"stock"`
	ImageURL    string    `db:"image_url" json:"imageUrl"`
	ImageFileID string    `db:"image_file_id" json:"imageFileId"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

func (p *Product) LowStock() bool { return p.Stock <= p.MinStock }

type ProductInput struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Unit        string `json:"unit"`
	Price       int64  `json:"price"`
	MinStock    int64  `json:"minStock"`
	ImageURL    string `json:"imageUrl"`
	ImageFileID string `json:"imageFileId"`
}
