package build

// Changeset is a VCS changeset recorded against a build result.
type Changeset struct {
	RepositoryID int64  `json:"repository_id"`
	PluginKey    string `json:"plugin_key"`
	ChangesetID  string `json:"changeset_id"`
}

// ResultsSummary is what a results page knows about a build or chain result.
type ResultsSummary struct {
	PlanKey       string
	PlanResultKey string
	Changesets    []Changeset
}

// FirstChangeset returns the first changeset whose repository has the given plugin key.
func (s ResultsSummary) FirstChangeset(pluginKey string) (Changeset, bool) {
	for _, cs := range s.Changesets {
		if cs.PluginKey == pluginKey {
			return cs, true
		}
	}
	return Changeset{}, false
}
