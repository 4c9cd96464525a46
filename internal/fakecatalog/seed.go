package fakecatalog

import (
	"fmt"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

var sampleCategories = []string{
	"men's clothing",
	"jewelery",
	"electronics",
	"women's clothing",
}

// SampleRecords returns n deterministic records spread round-robin over four
// categories.
func SampleRecords(n int) []model.Record {
	records := make([]model.Record, 0, n)
	for i := 1; i <= n; i++ {
		category := sampleCategories[(i-1)%len(sampleCategories)]
		records = append(records, model.Record{
			ID:          i,
			Title:       fmt.Sprintf("Sample product %d", i),
			Price:       float64(i*100+99) / 10,
			Description: fmt.Sprintf("Sample %s item number %d", category, i),
			Category:    category,
			Image:       fmt.Sprintf("https://example.com/img/%d.jpg", i),
			Rating:      &model.Rating{Rate: float64(i%5) + 0.5, Count: i * 10},
		})
	}
	return records
}
