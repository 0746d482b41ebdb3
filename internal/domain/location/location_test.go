package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr bool
	}{
		{name: "valid", loc: Location{Label: "Home", Latitude: 22.57, Longitude: 88.36}},
		{name: "missing coordinates", loc: Location{Label: "Home"}, wantErr: true},
		{name: "latitude out of range", loc: Location{Latitude: 91, Longitude: 10}, wantErr: true},
		{name: "longitude out of range", loc: Location{Latitude: 10, Longitude: -181}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLocation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLocation_Delivery(t *testing.T) {
	l := Location{ID: "l1", Address: "12 Park Street", Latitude: 22.55, Longitude: 88.35}

	got := l.Delivery()
	assert.Equal(t, "12 Park Street", got.Label)
	assert.True(t, got.Resolved())

	l.Label = "Office"
	assert.Equal(t, "Office", l.Delivery().Label)
}

func TestFind(t *testing.T) {
	list := []Location{{ID: "a"}, {ID: "b", Label: "Work"}}

	got, ok := Find(list, "b")
	require.True(t, ok)
	assert.Equal(t, "Work", got.Label)

	_, ok = Find(list, "c")
	assert.False(t, ok)
}
