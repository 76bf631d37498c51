package orders

import (
	"context"
	"io"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/tealeg/xlsx"
)

const (
	// ExportContentType is the MIME type of ExportXLSX output.
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheetName   = "Orders"
	exportItemsSheet  = "Items"
	exportTimeLayout  = "2006-01-02 15:04:05"
)

var (
	exportOrderHeaders = []string{"Order ID", "Created", "Buyer", "Email", "Shipping Address", "Items", "Total", "Status"}
	exportItemHeaders  = []string{"Order ID", "Product ID", "Title", "Quantity", "Unit Price", "Line Total"}
)

// ExportXLSX writes every order as a spreadsheet with one sheet of orders and one of lines.
func (s *service) ExportXLSX(ctx context.Context, w io.Writer) error {
	rows, err := s.repo.ListForExport(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for export")
	}

	file := xlsx.NewFile()
	orderSheet, err := file.AddSheet(exportSheetName)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create orders sheet")
	}
	itemSheet, err := file.AddSheet(exportItemsSheet)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create items sheet")
	}
	addHeader(orderSheet, exportOrderHeaders)
	addHeader(itemSheet, exportItemHeaders)

	for _, order := range FromModels(rows) {
		row := orderSheet.AddRow()
		row.AddCell().SetString(order.ID.String())
		row.AddCell().SetString(order.CreatedAt.UTC().Format(exportTimeLayout))
		row.AddCell().SetString(order.BuyerName)
		row.AddCell().SetString(order.BuyerEmail)
		row.AddCell().SetString(order.ShippingAddress)
		row.AddCell().SetInt(order.ItemCount)
		row.AddCell().SetString(money.Format(order.TotalCents))
		row.AddCell().SetString(order.Status.String())

		for _, item := range order.Items {
			line := itemSheet.AddRow()
			line.AddCell().SetString(order.ID.String())
			productID := ""
			if item.ProductID != nil {
				productID = item.ProductID.String()
			}
			line.AddCell().SetString(productID)
			line.AddCell().SetString(item.Title)
			line.AddCell().SetInt(item.Quantity)
			line.AddCell().SetString(money.Format(item.UnitPriceCents))
			line.AddCell().SetString(money.Format(item.LineTotalCents))
		}
	}

	if err := file.Write(w); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write spreadsheet")
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, headers []string) {
	row := sheet.AddRow()
	for _, h := range headers {
		row.AddCell().SetString(h)
	}
}
