package fake

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parceiros/internal/core"
)

// Demo seeds the site with a handful of partners, each exporting a small CSV
// dated at today.
func Demo(now time.Time) Option {
	partners := []core.Partner{
		demoPartner("Tayna", "@tayna", 10, 50, true),
		demoPartner("Raquel", "@raquel", 8, 75, true),
		demoPartner("Carlos", "@carlos", 12, 100, true),
		demoPartner("Inativo", "@inativo", 5, 0, false),
		demoPartner("Novo", "@novo", 7, 25, true),
	}
	return func(s *Site) {
		s.partners = append(s.partners, partners...)
		for _, p := range partners {
			s.csv[strings.ToLower(p.Username)] = demoCSV(now)
		}
	}
}

func demoPartner(name, username string, commission, bonus int64, active bool) core.Partner {
	return core.Partner{
		Name:       name,
		Username:   username,
		Commission: decimal.NewFromInt(commission),
		Bonus:      decimal.NewFromInt(bonus),
		Active:     active,
	}
}

func demoCSV(now time.Time) string {
	day := now.Format(core.DateLayout)
	rows := []string{
		"data,hora,cliente,login,descricao,valor,tipo,metodo",
		fmt.Sprintf(`%s,10:30,"Cliente A","@clienteA","Depósito",500.00,entrada,PIX`, day),
		fmt.Sprintf(`%s,14:15,"Cliente A","@clienteA","Saque",200.00,saida,PIX`, day),
		fmt.Sprintf(`%s,16:45,"Cliente B","@clienteB","Depósito",300.00,entrada,PIX`, day),
		fmt.Sprintf(`%s,18:20,"Cliente C","@clienteC","Depósito",750.00,entrada,PIX`, day),
		fmt.Sprintf(`%s,20:10,"Cliente C","@clienteC","Saque",50.00,saida,PIX`, day),
	}
	return strings.Join(rows, "\n") + "\n"
}
