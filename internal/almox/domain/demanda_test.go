package domain

import (
	"testing"
	"time"

	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func novaDemanda(lines ...DemandaItem) *Demanda {
	return &Demanda{SetorID: "s1", Status: DemandaPendente, Items: lines}
}

func atendimento(items ...AtendimentoItem) Atendimento {
	return Atendimento{AtendidoPor: "gerente", OrigemTipo: LocalAlmoxarifado, OrigemID: "a1", Items: items, CreatedAt: time.Now()}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		items []DemandaItem
		want  DemandaStatus
	}{
		{"nothing delivered", []DemandaItem{{Quantidade: d(5)}, {Quantidade: d(3)}}, DemandaPendente},
		{"one line partial", []DemandaItem{{Quantidade: d(5), Atendido: d(2)}, {Quantidade: d(3)}}, DemandaParcial},
		{"one line complete", []DemandaItem{{Quantidade: d(5), Atendido: d(5)}, {Quantidade: d(3)}}, DemandaParcial},
		{"all complete", []DemandaItem{{Quantidade: d(5), Atendido: d(5)}, {Quantidade: d(3), Atendido: d(3)}}, DemandaAtendido},
		{"no lines", nil, DemandaPendente},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.items))
		})
	}
}

func TestApplyAtendimento_PartialThenComplete(t *testing.T) {
	dem := novaDemanda(DemandaItem{ProdutoID: "p1", Quantidade: d(10)})

	require.NoError(t, dem.ApplyAtendimento(atendimento(AtendimentoItem{ProdutoID: "p1", Quantidade: d(6)})))
	assert.True(t, dem.Items[0].Atendido.Equal(d(6)))
	assert.Equal(t, DemandaParcial, dem.Status)

	require.NoError(t, dem.ApplyAtendimento(atendimento(AtendimentoItem{ProdutoID: "p1", Quantidade: d(4)})))
	assert.True(t, dem.Items[0].Atendido.Equal(d(10)))
	assert.Equal(t, DemandaAtendido, dem.Status)
	assert.Len(t, dem.Atendimentos, 2)

	err := dem.ApplyAtendimento(atendimento(AtendimentoItem{ProdutoID: "p1", Quantidade: d(1)}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Len(t, dem.Atendimentos, 2)
	assert.Equal(t, DemandaAtendido, dem.Status)
}

func TestCheckAtendimento(t *testing.T) {
	dem := novaDemanda(
		DemandaItem{ProdutoID: "p1", Quantidade: d(10)},
		DemandaItem{ProdutoID: "42", Quantidade: d(2)},
	)

	assert.NoError(t, dem.CheckAtendimento([]AtendimentoItem{{ProdutoID: "p1", Quantidade: d(10)}}))
	assert.NoError(t, dem.CheckAtendimento([]AtendimentoItem{{ProdutoID: "042", Quantidade: d(1)}}))

	assert.Error(t, dem.CheckAtendimento(nil))
	assert.Error(t, dem.CheckAtendimento([]AtendimentoItem{{ProdutoID: "p1", Quantidade: d(0)}}))
	assert.Error(t, dem.CheckAtendimento([]AtendimentoItem{{ProdutoID: "p9", Quantidade: d(1)}}))
	assert.Error(t, dem.CheckAtendimento([]AtendimentoItem{
		{ProdutoID: "p1", Quantidade: d(6)},
		{ProdutoID: "p1", Quantidade: d(5)},
	}), "repeated lines add up")
}

func TestStatusNeverRegresses(t *testing.T) {
	dem := novaDemanda(
		DemandaItem{ProdutoID: "p1", Quantidade: d(3)},
		DemandaItem{ProdutoID: "p2", Quantidade: d(2)},
	)
	batches := [][]AtendimentoItem{
		{{ProdutoID: "p1", Quantidade: d(1)}},
		{{ProdutoID: "p2", Quantidade: d(5)}},
		{{ProdutoID: "p2", Quantidade: d(2)}},
		{{ProdutoID: "p1", Quantidade: d(1)}},
		{{ProdutoID: "p1", Quantidade: d(2)}},
		{{ProdutoID: "p1", Quantidade: d(1)}},
	}

	prev := dem.Status.rank()
	for _, b := range batches {
		_ = dem.ApplyAtendimento(atendimento(b...))
		assert.GreaterOrEqual(t, dem.Status.rank(), prev)
		prev = dem.Status.rank()
	}
	assert.Equal(t, DemandaAtendido, dem.Status)
}

func TestDeletable(t *testing.T) {
	dem := novaDemanda(DemandaItem{ProdutoID: "p1", Quantidade: d(2)})
	assert.True(t, dem.Deletable())

	require.NoError(t, dem.ApplyAtendimento(atendimento(AtendimentoItem{ProdutoID: "p1", Quantidade: d(1)})))
	assert.False(t, dem.Deletable())
}

func TestDemandaItems_JSONB(t *testing.T) {
	items := DemandaItems{{ProdutoID: "p1", Quantidade: d(3), Atendido: d(1)}}
	v, err := items.Value()
	require.NoError(t, err)

	var back DemandaItems
	require.NoError(t, back.Scan([]byte(v.(string))))
	require.Len(t, back, 1)
	assert.True(t, back[0].Quantidade.Equal(d(3)))

	assert.NoError(t, back.Scan(nil))
	assert.Error(t, back.Scan(42))
}
