package product

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9_-]{1,40}$`)

const defaultUnit = "pcs"

// NormalizeSKU trims and upper-cases a SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// normalizeInput cleans in and reports every invalid field at once.
func normalizeInput(in model.ProductInput) (model.ProductInput, error) {
	in.SKU = NormalizeSKU(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Unit = strings.TrimSpace(in.Unit)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.ImageFileID = strings.TrimSpace(in.ImageFileID)
	if in.Unit == "" {
		in.Unit = defaultUnit
	}

	fields := map[string]string{}
	if !skuPattern.MatchString(in.SKU) {
		fields["sku"] = "must be 1-40 characters of A-Z, 0-9, - or _"
	}
	if n := utf8.RuneCountInString(in.Name); n == 0 || n > 120 {
		fields["name"] = "must be 1-120 characters"
	}
	if utf8.RuneCountInString(in.Category) > 60 {
		fields["category"] = "must be at most 60 characters"
	}
	if utf8.RuneCountInString(in.Unit) > 20 {
		fields["unit"] = "must be at most 20 characters"
	}
	if in.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if in.MinStock < 0 {
		fields["minStock"] = "must not be negative"
	}
	if in.ImageURL != "" {
		u, err := url.Parse(in.ImageURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" || len(in.ImageURL) > 500 {
			fields["imageUrl"] = "must be an http(s) URL of at most 500 characters"
		}
	}
	if len(fields) > 0 {
		return in, apperr.Invalid("invalid product", fields)
	}
	return in, nil
}

func applyInput(p *model.Product, in model.ProductInput) {
	p.SKU = in.SKU
	p.Name = in.Name
	p.Category = in.Category
	p.Unit = in.Unit
	p.Price = in.Price
	p.MinStock = in.MinStock
	p.ImageURL = in.ImageURL
	p.ImageFileID = in.ImageFileID
}
