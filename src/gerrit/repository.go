package gerrit

import (
	"gerrit-verifier/src/build"
	"gerrit-verifier/src/review"
)

// Repository is a plan repository backed by the Gerrit adapter.
type Repository struct {
	name    string
	service review.Service
}

// NewRepository binds a repository to a Gerrit service.
func NewRepository(name string, service review.Service) *Repository {
	return &Repository{name: name, service: service}
}

func (r *Repository) Name() string { return r.name }

// Review returns the Gerrit service the repository was created with.
func (r *Repository) Review() (review.Service, bool) {
	return r.service, r.service != nil
}

// RepositoryFactory builds live repositories from definitions, binding every
// Gerrit-keyed definition to one shared service.
type RepositoryFactory struct {
	service review.Service
}

// NewRepositoryFactory creates a factory sharing service between repositories.
func NewRepositoryFactory(service review.Service) *RepositoryFactory {
	return &RepositoryFactory{service: service}
}

// Repository returns the live repository for def.
func (f *RepositoryFactory) Repository(def build.RepositoryDefinition) build.Repository {
	if def.PluginKey == review.GerritPluginKey {
		return NewRepository(def.Name, f.service)
	}
	return build.NewPlainRepository(def.Name)
}
