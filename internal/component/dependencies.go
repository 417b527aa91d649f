package component

// DependencyKind is the bucket a declared dependency lands in.
type DependencyKind string

const (
	DepLinkedService DependencyKind = "linkedService"
	DepPipeline      DependencyKind = "pipeline"
	DepDataset       DependencyKind = "dataset"
	DepTrigger       DependencyKind = "trigger"
	DepDataflow      DependencyKind = "dataflow"
	DepUnparsed      DependencyKind = "unparsed"
)

// Dependencies is a set of referenced names partitioned by target kind.
// Each bucket preserves first-seen order and holds no duplicates.
type Dependencies struct {
	LinkedServices []string `json:"linkedServices"`
	Pipelines      []string `json:"pipelines"`
	Datasets       []string `json:"datasets"`
	Triggers       []string `json:"triggers"`
	Dataflows      []string `json:"dataflows"`
	Unparsed       []string `json:"unparsed"`
}

// Add records name under kind.
func (d *Dependencies) Add(kind DependencyKind, name string) {
	if name == "" {
		return
	}
	bucket := d.bucket(kind)
	for _, existing := range *bucket {
		if existing == name {
			return
		}
	}
	*bucket = append(*bucket, name)
}

func (d *Dependencies) bucket(kind DependencyKind) *[]string {
	switch kind {
	case DepLinkedService:
		return &d.LinkedServices
	case DepPipeline:
		return &d.Pipelines
	case DepDataset:
		return &d.Datasets
	case DepTrigger:
		return &d.Triggers
	case DepDataflow:
		return &d.Dataflows
	default:
		return &d.Unparsed
	}
}

// Names returns the bucket for kind.
func (d Dependencies) Names(kind DependencyKind) []string {
	return *d.bucket(kind)
}

// Len counts all recorded dependencies, unparsed included.
func (d Dependencies) Len() int {
	return len(d.LinkedServices) + len(d.Pipelines) + len(d.Datasets) +
		len(d.Triggers) + len(d.Dataflows) + len(d.Unparsed)
}

// TargetKind maps a resolvable bucket to the component kind it references.
func (k DependencyKind) TargetKind() (Kind, bool) {
	switch k {
	case DepLinkedService:
		return KindLinkedService, true
	case DepPipeline:
		return KindPipeline, true
	case DepDataset:
		return KindDataset, true
	case DepTrigger:
		return KindTrigger, true
	case DepDataflow:
		return KindDataflow, true
	}
	return "", false
}

// ResolvableKinds lists buckets that name a component, in stable order.
var ResolvableKinds = []DependencyKind{DepLinkedService, DepPipeline, DepDataset, DepTrigger, DepDataflow}
