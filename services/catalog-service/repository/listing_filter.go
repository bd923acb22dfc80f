package repository

import (
	"slices"
	"strings"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

// Matches applies the filter in memory. Stores without server-side querying
// (DynamoDB scans) use it together with SortListings.
func (f ListingFilter) Matches(l *models.Listing) bool {
	if l.DeletedAt != nil {
		return false
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.OS != "" && !containsFold(l.Specifications.OSType, f.OS) {
		return false
	}
	if f.Provider != "" && !strings.EqualFold(l.Provider, f.Provider) {
		return false
	}
	if f.MinCPU > 0 && l.Specifications.CPUCores < f.MinCPU {
		return false
	}
	if f.MinRAM > 0 && l.Specifications.RAMGB < f.MinRAM {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && l.OwnerID != f.OwnerID {
		return false
	}
	if f.Search != "" {
		hit := containsFold(l.Name, f.Search) || containsFold(l.Description, f.Search)
		for _, tag := range l.Tags {
			hit = hit || containsFold(tag, f.Search)
		}
		if !hit {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// SortListings orders listings in place. Ties fall back to newest first.
func SortListings(listings []*models.Listing, sort string) {
	slices.SortStableFunc(listings, func(a, b *models.Listing) int {
		switch sort {
		case SortPriceLow:
			if c := compareFloat(a.Price, b.Price); c != 0 {
				return c
			}
		case SortPriceHigh:
			if c := compareFloat(b.Price, a.Price); c != 0 {
				return c
			}
		case SortFeatured, "":
			if a.Featured != b.Featured {
				if a.Featured {
					return -1
				}
				return 1
			}
			if c := compareFloat(b.Rating, a.Rating); c != 0 {
				return c
			}
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Page slices an already filtered and sorted result.
func Page(listings []*models.Listing, skip, limit int) []*models.Listing {
	if skip >= len(listings) {
		return []*models.Listing{}
	}
	end := len(listings)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return listings[skip:end]
}
