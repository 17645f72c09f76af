package roles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Sales Manager", "sales_manager"},
		{"  HR / Payroll Officer  ", "hr_payroll_officer"},
		{"Jefe de Ventas Región", "jefe_de_ventas_region"},
		{"already_a_slug", "already_a_slug"},
		{"---", ""},
		{"Finance--Manager 2", "finance_manager_2"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}
