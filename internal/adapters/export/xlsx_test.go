package export

import (
	"bytes"
	"math"
	"pi360-service/internal/domain"
	"pi360-service/internal/services"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ptr(v float64) *float64 { return &v }

func TestWriteXLSX(t *testing.T) {
	rows := services.TableRows([]domain.RankedFacility{
		{Facility: domain.Facility{ID: "1", Name: "Downtown Imaging", Address: "1 Main St", Latitude: 39.9, Longitude: -98.6, Specialties: []string{"MRI", "CT"}}, DistanceMiles: ptr(3.4)},
		{Facility: domain.Facility{ID: "2", Name: "Eastside Chiro", Address: "2 Oak Ave", Latitude: 40, Longitude: -98.4}, DistanceMiles: ptr(12.25)},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, &domain.GeoPoint{Latitude: 39.8, Longitude: -98.5}, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, []string{"Rank", "Name", "Address", "Specialties", "Latitude", "Longitude", "Distance"}, got[0])
	assert.Equal(t, "Reference point", got[1][1])
	assert.Equal(t, []string{"1", "Downtown Imaging", "1 Main St", "MRI, CT"}, got[2][:4])
	assert.Equal(t, "3.40", got[2][6])
	assert.Equal(t, "2", got[3][0])
	assert.Equal(t, "12.25", got[3][6])
}

func TestWriteXLSX_UnrankedAndMalformed(t *testing.T) {
	rows := services.TableRows([]domain.RankedFacility{
		{Facility: domain.Facility{ID: "9", Name: "Unmapped", Address: "x", Latitude: math.NaN(), Longitude: math.NaN()}},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Trailing empty cells are trimmed by GetRows.
	assert.Equal(t, []string{"1", "Unmapped", "x"}, got[1])
}
