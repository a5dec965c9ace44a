package trees

// Decision answers a deep-directory or oversize-file question. The zero
// value denies.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// CollisionDecision answers a name collision. The zero value keeps the
// existing sibling.
type CollisionDecision int

const (
	KeepExisting CollisionDecision = iota
	Replace
)

// PolicyHost is asked whenever an operation would violate a disc format
// constraint or collide with an existing sibling.
type PolicyHost interface {
	NameCollision(existing *Node) CollisionDecision
	DeepDirectory(name string) Decision
	OversizeFile(name string) Decision
}

// DefaultPolicy answers every question with its default: keep the existing
// node and deny.
type DefaultPolicy struct{}

func (DefaultPolicy) NameCollision(*Node) CollisionDecision { return KeepExisting }
func (DefaultPolicy) DeepDirectory(string) Decision         { return Deny }
func (DefaultPolicy) OversizeFile(string) Decision          { return Deny }

// StaticPolicy answers with fixed values, typically read from configuration.
type StaticPolicy struct {
	ReplaceOnCollision bool
	AllowDeep          bool
	AllowOversize      bool
}

func (p StaticPolicy) NameCollision(*Node) CollisionDecision {
	if p.ReplaceOnCollision {
		return Replace
	}
	return KeepExisting
}

func (p StaticPolicy) DeepDirectory(string) Decision {
	if p.AllowDeep {
		return Allow
	}
	return Deny
}

func (p StaticPolicy) OversizeFile(string) Decision {
	if p.AllowOversize {
		return Allow
	}
	return Deny
}

// PolicyFuncs builds a PolicyHost from optional functions. Nil functions
// answer with the default.
type PolicyFuncs struct {
	OnNameCollision func(existing *Node) CollisionDecision
	OnDeepDirectory func(name string) Decision
	OnOversizeFile  func(name string) Decision
}

func (p PolicyFuncs) NameCollision(existing *Node) CollisionDecision {
	if p.OnNameCollision == nil {
		return KeepExisting
	}
	return p.OnNameCollision(existing)
}

func (p PolicyFuncs) DeepDirectory(name string) Decision {
	if p.OnDeepDirectory == nil {
		return Deny
	}
	return p.OnDeepDirectory(name)
}

func (p PolicyFuncs) OversizeFile(name string) Decision {
	if p.OnOversizeFile == nil {
		return Deny
	}
	return p.OnOversizeFile(name)
}
