package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVisibleText(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		expect string
	}{
		{
			name:   "inline markup",
			body:   `<html><body><p>Sold <b>out</b></p></body></html>`,
			expect: "Sold out",
		},
		{
			name:   "drops scripts",
			body:   `<html><body><script>var inStock = false;</script><p>Add to cart</p></body></html>`,
			expect: "Add to cart",
		},
		{
			name:   "collapses whitespace",
			body:   "<div>\n  currently\n\n  unavailable  </div>",
			expect: "currently unavailable",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, VisibleText(test.body))
		})
	}
}

func TestContainsAnyFold(t *testing.T) {
	require.True(t, ContainsAnyFold("Add To Cart now", []string{"add to cart"}))
	require.True(t, ContainsAnyFold("buy now", []string{"checkout", "BUY NOW"}))
	require.False(t, ContainsAnyFold("access denied", []string{"add to cart", "buy now"}))
	require.False(t, ContainsAnyFold("anything", nil))
	require.False(t, ContainsAnyFold("anything", []string{""}))
}
