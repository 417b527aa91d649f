package resolver

// Role qualifies which side of an activity a connection lookup is for.
type Role string

const (
	RoleSource        Role = "source"
	RoleSink          Role = "sink"
	RoleDataset       Role = "dataset"
	RoleLinkedService Role = "linkedService"
	RoleStaging       Role = "staging"
	RoleLog           Role = "log"
)

// ConnectionDescriptor is a destination connection chosen for a linked service.
type ConnectionDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ActivityMapping is one per-activity-per-role choice recorded by an earlier
// interactive mapping stage.
type ActivityMapping struct {
	Pipeline      string `json:"pipeline"`
	Activity      string `json:"activity"`
	Role          Role   `json:"role"`
	LinkedService string `json:"linkedService,omitempty"`
	ConnectionID  string `json:"connectionId"`
}

// Context holds every mapping source the resolver consults.
type Context struct {
	// ByReferenceID is keyed by ReferenceKey(pipeline, activity, role).
	ByReferenceID map[string]string
	// ByActivityName is keyed by ActivityKey(pipeline, activity).
	ByActivityName map[string]string
	// PipelineTables lists recorded mappings per pipeline, scanned by linked-service name.
	PipelineTables map[string][]ActivityMapping
	// Bridge maps a linked-service name to the connection configured for it.
	Bridge map[string]ConnectionDescriptor
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{
		ByReferenceID:  map[string]string{},
		ByActivityName: map[string]string{},
		PipelineTables: map[string][]ActivityMapping{},
		Bridge:         map[string]ConnectionDescriptor{},
	}
}

// ReferenceKey is the fully qualified key "{pipeline}_{activity}_{role}".
func ReferenceKey(pipeline, activity string, role Role) string {
	return pipeline + "_" + activity + "_" + string(role)
}

// ActivityKey is the legacy key "{pipeline}_{activity}".
func ActivityKey(pipeline, activity string) string {
	return pipeline + "_" + activity
}

// Record adds a per-activity mapping to the reference-id index and the pipeline table.
func (c *Context) Record(m ActivityMapping) {
	if m.ConnectionID == "" {
		return
	}
	c.ByReferenceID[ReferenceKey(m.Pipeline, m.Activity, m.Role)] = m.ConnectionID
	c.PipelineTables[m.Pipeline] = append(c.PipelineTables[m.Pipeline], m)
}

// Merge copies other into c. Entries in other win on key collisions.
func (c *Context) Merge(other *Context) {
	if other == nil {
		return
	}
	for k, v := range other.ByReferenceID {
		c.ByReferenceID[k] = v
	}
	for k, v := range other.ByActivityName {
		c.ByActivityName[k] = v
	}
	for k, v := range other.PipelineTables {
		c.PipelineTables[k] = append(c.PipelineTables[k], v...)
	}
	for k, v := range other.Bridge {
		c.Bridge[k] = v
	}
}
