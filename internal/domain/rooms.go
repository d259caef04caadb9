package domain

// Room identifiers are opaque to the gateway. By convention clients use
// "<kind>:<entityID>"; these helpers build the conventional names for the
// rooms the router targets itself.

func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

func ApplicationRoom(applicationID string) string {
	return "application:" + applicationID
}

func NoteRoom(noteID string) string {
	return "note:" + noteID
}
