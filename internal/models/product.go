package models

import (
	"time"
)

// Product is one tracked (product, website) pairing. InstanceID is the
// caller-generated unique key; ProductID groups the same logical product
// across websites.
type Product struct {
	InstanceID  string    `json:"instanceId"`
	ProductID   string    `json:"productId"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Website     string    `json:"website"`
	ScraperType string    `json:"scraperType"`
	Category    string    `json:"category,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PriceSample is one recorded price observation. Immutable once written.
type PriceSample struct {
	ID          int64     `json:"id"`
	InstanceID  string    `json:"instanceId"`
	ProductID   string    `json:"productId"`
	Website     string    `json:"website"`
	Price       int64     `json:"price"`
	CheckedDate string    `json:"date"`
	CheckedAt   time.Time `json:"checkedAt"`
	ProductName string    `json:"name,omitempty"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Product) Validate() []string {
	var errors []string

	if p.InstanceID == "" {
		errors = append(errors, "instanceId is required")
	}

	if p.ProductID == "" {
		errors = append(errors, "productId is required")
	}

	if p.Name == "" {
		errors = append(errors, "name is required")
	}

	if p.URL == "" {
		errors = append(errors, "url is required")
	}

	if p.Website == "" {
		errors = append(errors, "website is required")
	}

	if p.ScraperType == "" {
		errors = append(errors, "scraperType is required")
	}

	return errors
}
