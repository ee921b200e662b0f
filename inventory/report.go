package inventory

// ReportRow is one line of the stock report.
type ReportRow struct {
	ProductID    ProductID
	ProductName  string
	LocationID   LocationID
	LocationName string
	Quantity     int64
}

// BuildReport flattens balances into rows, products in catalog order and
// locations in catalog order within each product. Zero balances are left
// out; a zero means nothing is there, not a state worth a row.
func BuildReport(products []Product, locations []Location, balances Balances) []ReportRow {
	rows := []ReportRow{}
	for _, p := range products {
		for _, l := range locations {
			q := balances.Get(p.ID, l.ID)
			if q == 0 {
				continue
			}
			rows = append(rows, ReportRow{
				ProductID:    p.ID,
				ProductName:  p.Name,
				LocationID:   l.ID,
				LocationName: l.Name,
				Quantity:     q,
			})
		}
	}
	return rows
}
