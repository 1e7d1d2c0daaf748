package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

var now = time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

func sampleTable() Table {
	return Table{
		Title:   "Purchase Orders",
		Columns: []string{"Number", "Supplier", "Total"},
		Rows: [][]string{
			{"PO-1", "Acme, Inc.", "100.00"},
			{"PO-2", "Medline", "250.50"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, "EXCEL": FormatExcel, "xlsx": FormatExcel, " pdf ": FormatPDF} {
		f, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, f)
	}
	_, err := ParseFormat("docx")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestRenderCSV(t *testing.T) {
	art, err := Render(sampleTable(), FormatCSV, now)
	require.NoError(t, err)
	assert.Equal(t, "purchase-orders-20240310-123000.csv", art.FileName)
	assert.Equal(t, "text/csv", art.ContentType)

	records, err := csv.NewReader(bytes.NewReader(art.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Acme, Inc.", records[1][1])
}

func TestRenderExcel(t *testing.T) {
	art, err := Render(sampleTable(), FormatExcel, now)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Medline", v)
}

func TestRenderPDF(t *testing.T) {
	art, err := Render(sampleTable(), FormatPDF, now)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(art.Data, []byte("%PDF")))
	assert.Equal(t, "application/pdf", art.ContentType)
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(sampleTable(), Format("docx"), now)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

type fakeUploader struct{ key, contentType string }

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, _ []byte) (string, error) {
	u.key, u.contentType = key, contentType
	return "https://bucket/" + key, nil
}

type fakeDelegate struct{ req backend.ExportRequest }

func (d *fakeDelegate) RequestExport(_ context.Context, req backend.ExportRequest) (string, error) {
	d.req = req
	return "https://backend/export.pdf", nil
}

type auditSink struct{ entries []*model.AuditLog }

func (a *auditSink) Record(_ context.Context, e *model.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

func TestLinkUploadsWhenConfigured(t *testing.T) {
	up := &fakeUploader{}
	audits := &auditSink{}
	svc := NewService(up, &fakeDelegate{}, audits, query.Fixed(now), nil, nil)

	url, err := svc.Link(context.Background(), model.Actor{ID: "u1"}, Request{Entity: "orders", Format: FormatCSV, Table: sampleTable()})
	require.NoError(t, err)
	assert.Contains(t, url, "https://bucket/orders/")
	assert.Equal(t, "text/csv", up.contentType)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, model.AuditActionExport, audits.entries[0].Action)
}

func TestLinkDelegatesWithoutUploader(t *testing.T) {
	d := &fakeDelegate{}
	svc := NewService(nil, d, nil, query.Fixed(now), nil, nil)

	sort := query.Sort{Field: "orderDate", Direction: query.Desc}
	url, err := svc.Link(context.Background(), model.Actor{}, Request{Entity: "orders", Format: FormatPDF, Sort: sort})
	require.NoError(t, err)
	assert.Equal(t, "https://backend/export.pdf", url)
	assert.Equal(t, "pdf", d.req.Format)
	assert.Equal(t, sort, d.req.Sort)
}
