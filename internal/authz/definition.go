package authz

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"gorm.io/datatypes"
)

// Definition is the parsed authorization model for one entity type: which
// relations exist, which subject types each relation accepts, and which
// derived permissions are defined on top of them.
type Definition struct {
	Relations   map[string]SubjectSpec `json:"relations"`
	Permissions map[string]Permission  `json:"permissions,omitempty"`
}

// Permission derives from a base relation with an optional policy script
type Permission struct {
	Relation     string              `json:"relation"`
	PolicyEngine models.PolicyEngine `json:"policyEngine,omitempty"`
	Policy       string              `json:"policy,omitempty"`
}

// Scripted reports whether the permission carries a Lua policy
func (p Permission) Scripted() bool {
	return p.Policy != "" && (p.PolicyEngine == "" || p.PolicyEngine == models.PolicyEngineLua)
}

// SubjectSpec declares which subject types a relation accepts. Three input
// shapes are accepted ("user|group", ["user","group"], and
// {"union": [...], "subjectParams": {"hierarchy": true}}); they normalize to
// this struct once at the boundary and nothing deeper branches on shape.
type SubjectSpec struct {
	Union     []string
	Hierarchy bool
}

type subjectSpecJSON struct {
	Union         []string           `json:"union"`
	SubjectParams *subjectParamsJSON `json:"subjectParams,omitempty"`
}

type subjectParamsJSON struct {
	Hierarchy bool `json:"hierarchy"`
}

func (s *SubjectSpec) UnmarshalJSON(data []byte) error {
	// pipe-delimited string shape
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		for _, part := range strings.Split(str, "|") {
			if part = strings.TrimSpace(part); part != "" {
				s.Union = append(s.Union, part)
			}
		}
		if len(s.Union) == 0 {
			return fmt.Errorf("subject spec %q names no subject types", str)
		}
		return nil
	}

	// plain array shape
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return fmt.Errorf("subject spec array is empty")
		}
		s.Union = list
		return nil
	}

	// union-with-params shape
	var obj subjectSpecJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid subject spec: %w", err)
	}
	if len(obj.Union) == 0 {
		return fmt.Errorf("subject spec union is empty")
	}
	s.Union = obj.Union
	if obj.SubjectParams != nil {
		s.Hierarchy = obj.SubjectParams.Hierarchy
	}
	return nil
}

func (s SubjectSpec) MarshalJSON() ([]byte, error) {
	if !s.Hierarchy {
		return json.Marshal(s.Union)
	}
	return json.Marshal(subjectSpecJSON{
		Union:         s.Union,
		SubjectParams: &subjectParamsJSON{Hierarchy: true},
	})
}

// ParseDefinition decodes a stored jsonb definition
func ParseDefinition(raw datatypes.JSON) (*Definition, error) {
	def := &Definition{}
	if err := json.Unmarshal(raw, def); err != nil {
		return nil, fmt.Errorf("invalid model definition: %w", err)
	}
	return def, nil
}

// Encode renders the canonical jsonb form
func (d *Definition) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model definition: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// Validate checks internal consistency: at least one relation, every declared
// subject type valid, and every permission referencing an existing relation.
func (d *Definition) Validate() error {
	if len(d.Relations) == 0 {
		return fmt.Errorf("definition declares no relations")
	}
	for name, spec := range d.Relations {
		if name == "" {
			return fmt.Errorf("relation with empty name")
		}
		for _, st := range spec.Union {
			if !models.IsValidSubjectType(models.SubjectType(st)) {
				return fmt.Errorf("relation %q allows unknown subject type %q", name, st)
			}
		}
	}
	for name, perm := range d.Permissions {
		if perm.Relation == "" {
			return fmt.Errorf("permission %q names no relation", name)
		}
		if _, exists := d.Relations[perm.Relation]; !exists {
			return fmt.Errorf("permission %q references undefined relation %q", name, perm.Relation)
		}
	}
	return nil
}

// HasRelation reports whether the definition declares the relation
func (d *Definition) HasRelation(relation string) bool {
	_, exists := d.Relations[relation]
	return exists
}

// RelationNames returns the declared relations in sorted order
func (d *Definition) RelationNames() []string {
	names := make([]string, 0, len(d.Relations))
	for name := range d.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemovedRelations returns the relations present in d but absent from next
func (d *Definition) RemovedRelations(next *Definition) []string {
	var removed []string
	for name := range d.Relations {
		if !next.HasRelation(name) {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}
