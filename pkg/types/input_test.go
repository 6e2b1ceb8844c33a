package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemInputNormalize(t *testing.T) {
	t.Run("trims surrounding whitespace from the name", func(t *testing.T) {
		in := AddItemInput{Name: "  Ether  "}
		require.NoError(t, in.Normalize())
		assert.Equal(t, "Ether", in.Name)
	})

	t.Run("blank names are rejected", func(t *testing.T) {
		for _, name := range []string{"", "   ", "\t\n"} {
			in := AddItemInput{Name: name}
			assert.ErrorIs(t, in.Normalize(), ErrValidation, "name %q", name)
		}
	})

	t.Run("drops duplicate and non-positive tag ids", func(t *testing.T) {
		in := AddItemInput{Name: "Potion", TagIDs: []int64{3, 0, 1, 3, -2, 1}}
		require.NoError(t, in.Normalize())
		assert.Equal(t, []int64{3, 1}, in.TagIDs)
	})

	t.Run("blank image path becomes absent", func(t *testing.T) {
		blank := " "
		in := AddItemInput{Name: "Potion", ImageURL: &blank}
		require.NoError(t, in.Normalize())
		assert.Nil(t, in.ImageURL)
	})
}

func TestAddPriceInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      AddPriceInput
		wantErr bool
	}{
		{name: "valid observation", in: AddPriceInput{ItemID: 42, Price: 150}},
		{name: "zero price", in: AddPriceInput{ItemID: 42, Price: 0}, wantErr: true},
		{name: "negative price", in: AddPriceInput{ItemID: 42, Price: -5}, wantErr: true},
		{name: "missing item id", in: AddPriceInput{Price: 10}, wantErr: true},
		{name: "negative item id", in: AddPriceInput{ItemID: -1, Price: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseTagIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []int64
	}{
		{raw: "", want: nil},
		{raw: "1", want: []int64{1}},
		{raw: "1,2,3", want: []int64{1, 2, 3}},
		{raw: " 2 , 1 ", want: []int64{2, 1}},
		{raw: "1,abc,,3", want: []int64{1, 3}},
		{raw: "0,-4,5", want: []int64{5}},
		{raw: "4,4,2,4", want: []int64{4, 2}},
		{raw: "x,y", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTagIDs(tt.raw))
		})
	}
}
