package repositories

// Store groups the repositories of one persistence backend
type Store struct {
	Registry  RegistryRepository
	Aliases   AliasRepository
	Universe  UniverseRepository
	Mappings  MappingRepository
	Disease   DiseaseRepository
	Decisions DecisionRepository
	Workbench WorkbenchRepository
}
