package domain

// ConfigFileName is the fixed-name repository configuration file read at the
// root of every commit.
const ConfigFileName = ".oci.yml"

// RepositoryConfiguration is the content of the .oci.yml file.
// All paths are relative to the repository root.
type RepositoryConfiguration struct {
	OntologyFolder string `yaml:"ontologyFolder"`
	TestFolder     string `yaml:"testFolder"`
	ManifestPath   string `yaml:"manifestPath"`
}

// ManifestEntry describes one test case. Ontology is relative to the
// ontology folder, every other file to the test folder.
type ManifestEntry struct {
	Name             string `json:"name"`
	Ontology         string `json:"ontology"`
	Instances        string `json:"instances"`
	Schema           string `json:"schema"`
	ProducedShapeMap string `json:"producedShapeMap"`
	ExpectedShapeMap string `json:"expectedShapeMap"`
}

// Manifest is the ordered list of entries declared by a repository.
type Manifest struct {
	Entries []ManifestEntry
}

// Len returns the number of entries.
func (m Manifest) Len() int {
	return len(m.Entries)
}
