//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		InfraSet,
		RepositorySet,
		AuthSet,
		ServiceSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	panic(wire.Build(
		ConfigSet,
		provideDB,
		NewMigrationRunner,
	))
}
