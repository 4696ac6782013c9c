package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	ratio := DefaultLowStockRatio

	tests := []struct {
		name       string
		disponivel int64
		quantidade int64
		inicial    int64
		want       EstoqueStatus
	}{
		{"zero", 0, 0, 100, StatusZerado},
		{"negative", -1, -1, 100, StatusZerado},
		{"at ten percent of baseline", 10, 10, 100, StatusBaixo},
		{"just above ten percent", 11, 11, 100, StatusNormal},
		{"no baseline uses quantidade", 5, 5, 0, StatusNormal},
		{"full", 100, 100, 100, StatusNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Estoque{
				QuantidadeDisponivel: decimal.NewFromInt(tt.disponivel),
				Quantidade:           decimal.NewFromInt(tt.quantidade),
				QuantidadeInicial:    decimal.NewFromInt(tt.inicial),
			}
			assert.Equal(t, tt.want, Classify(e, ratio))
		})
	}
}

func TestScopeMatching(t *testing.T) {
	var s Scope
	s.Add(LocalAlmoxarifado, "a1")
	s.Add(LocalSetor, "s1", "0007")

	assert.False(t, s.IsEmpty())
	assert.True(t, s.Contains(LocalSetor, "7"))
	assert.False(t, s.Contains(LocalCentral, "c1"))

	assert.True(t, s.MatchEstoque(&Estoque{LocalTipo: LocalSetor, LocalID: "s1"}))
	assert.True(t, s.MatchEstoque(&Estoque{LocalTipo: LocalSubAlmoxarifado, LocalID: "x", AlmoxarifadoID: "a1"}))
	assert.False(t, s.MatchEstoque(&Estoque{LocalTipo: LocalAlmoxarifado, LocalID: "a2", CentralID: "c1"}))

	assert.True(t, s.MatchMovimentacao(&Movimentacao{OrigemID: "a1"}))
	assert.True(t, s.MatchMovimentacao(&Movimentacao{DestinoID: "s1"}))
	assert.False(t, s.MatchMovimentacao(&Movimentacao{OrigemID: "a2", DestinoID: "s2"}))

	assert.True(t, s.MatchDemanda(&Demanda{SetorID: "s1"}))
	assert.False(t, s.MatchDemanda(&Demanda{SetorID: "s2", CentralID: "c1"}))

	assert.True(t, s.MatchAlerta(&Alerta{LocalTipo: LocalAlmoxarifado, LocalID: "a1"}))
}

func TestScopeEmptyAndUnrestricted(t *testing.T) {
	empty := Scope{}
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.MatchEstoque(&Estoque{LocalTipo: LocalSetor, LocalID: "s1"}))

	all := UnrestrictedScope()
	assert.False(t, all.IsEmpty())
	assert.True(t, all.MatchEstoque(&Estoque{LocalTipo: LocalSetor, LocalID: "s1"}))
	assert.True(t, all.Contains(LocalCentral, "anything"))
}

func TestPageBounds(t *testing.T) {
	start, end := Page{Page: 2, PerPage: 10}.Bounds(25)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	start, end = Page{Page: 3, PerPage: 10}.Bounds(25)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = Page{Page: 9, PerPage: 10}.Bounds(25)
	assert.Equal(t, 25, start)
	assert.Equal(t, 25, end)

	start, end = Page{}.Bounds(25)
	assert.Equal(t, 0, start)
	assert.Equal(t, 25, end)
}
