package models

// All lists every table in migration order.
func All() []any {
	return []any{
		&Account{},
		&Category{},
		&Vendor{},
		&TransferGroup{},
		&ImportBatch{},
		&ImportRow{},
		&Transaction{},
		&Invoice{},
		&InvoiceItem{},
		&InvoicePayment{},
		&Bill{},
		&BillItem{},
		&BillPayment{},
	}
}
