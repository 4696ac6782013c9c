package service_test

import (
	"context"
	"testing"

	"github.com/almoxsms/almox-backend/internal/almox/domain"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/almoxsms/almox-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalService_CreateSetorDerivesCentral(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLocalService(e.deps)

	setor, err := svc.Create(as(e.gerente()), domain.LocalSetor, service.LocalInput{
		Nome:               "Centro Cirurgico",
		SubAlmoxarifadoIDs: []string{e.h.Sub.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, e.h.Central.ID, setor.CentralID)
	assert.Equal(t, e.h.Sub.ID, setor.SubAlmoxarifadoID)
	assert.True(t, setor.Ativo)

	got, err := svc.Get(as(e.respSub()), domain.LocalSetor, setor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Centro Cirurgico", got.Nome)
}

func TestLocalService_CreateRules(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLocalService(e.deps)
	ctx := context.Background()

	subSul := testutil.NewFixtureFactory().Local(domain.LocalSubAlmoxarifado, func(l *domain.Local) {
		l.AlmoxarifadoID = e.h.OutroAlmox.ID
	})
	require.NoError(t, e.store.Locais().Create(ctx, subSul))

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "gerente cannot create a central",
			run: func() error {
				_, err := svc.Create(as(e.gerente()), domain.LocalCentral, service.LocalInput{Nome: "Nova"})
				return err
			},
			wantErr: errors.ErrForbidden,
		},
		{
			name: "gerente cannot add an almoxarifado to the central",
			run: func() error {
				_, err := svc.Create(as(e.gerente()), domain.LocalAlmoxarifado, service.LocalInput{
					Nome: "Outro", CentralID: e.h.Central.ID,
				})
				return err
			},
			wantErr: errors.ErrForbidden,
		},
		{
			name: "setor needs a parent",
			run: func() error {
				_, err := svc.Create(as(e.superAdmin()), domain.LocalSetor, service.LocalInput{Nome: "Solto"})
				return err
			},
			wantErr: errors.ErrValidation,
		},
		{
			name: "unknown parent",
			run: func() error {
				_, err := svc.Create(as(e.superAdmin()), domain.LocalSubAlmoxarifado, service.LocalInput{
					Nome: "Sub", AlmoxarifadoID: "nao-existe",
				})
				return err
			},
			wantErr: errors.ErrValidation,
		},
		{
			name: "setor subs from different almoxarifados",
			run: func() error {
				_, err := svc.Create(as(e.superAdmin()), domain.LocalSetor, service.LocalInput{
					Nome: "Misto", SubAlmoxarifadoIDs: []string{e.h.Sub.ID, subSul.ID},
				})
				return err
			},
			wantErr: errors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	// the central accepts its legacy id as parent
	almox, err := svc.Create(as(e.adminCentral()), domain.LocalAlmoxarifado, service.LocalInput{
		Nome: "Almox Leste", CentralID: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, e.h.Central.ID, almox.CentralID)
}

func TestLocalService_DeleteInUse(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLocalService(e.deps)
	p := testutil.SeedProduto(t, e.store, e.h.Central.ID)

	err := svc.Delete(as(e.gerente()), domain.LocalSubAlmoxarifado, e.h.Sub.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	e.stock(t, p, e.h.SetorDireto, 1)
	err = svc.Delete(as(e.gerente()), domain.LocalSetor, e.h.SetorDireto.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	vazio, err := svc.Create(as(e.gerente()), domain.LocalSetor, service.LocalInput{Nome: "Vazio", AlmoxarifadoID: e.h.Almox.ID})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(as(e.gerente()), domain.LocalSetor, vazio.ID))
}

func TestLocalService_VisibilityIncludesInterCentral(t *testing.T) {
	e := newEnv(t)
	svc := service.NewLocalService(e.deps)

	_, err := svc.Get(as(e.gerente()), domain.LocalAlmoxarifado, e.h.OutroAlmox.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = svc.Update(as(e.superAdmin()), domain.LocalAlmoxarifado, e.h.OutroAlmox.ID, service.LocalInput{
		Nome:                   "Almoxarifado Sul",
		CentralID:              e.h.OutraCentral.ID,
		CanReceiveInterCentral: true,
	})
	require.NoError(t, err)

	_, err = svc.Get(as(e.gerente()), domain.LocalAlmoxarifado, e.h.OutroAlmox.ID)
	require.NoError(t, err)

	rows, err := svc.List(as(e.gerente()), domain.LocalAlmoxarifado, service.LocalQuery{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	setores, err := svc.List(as(e.respSub()), domain.LocalSetor, service.LocalQuery{})
	require.NoError(t, err)
	require.Len(t, setores, 1)
	assert.Equal(t, e.h.Setor.ID, setores[0].ID)
}
