package rtenv

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// Fixture is the declarative form of a Snapshot. Harness scenarios and
// the CLI describe runtimes in this shape; Build resolves the names
// into handles.
//
// Classes are referenced by bare name, so names must be unique across
// loaders within one fixture. Methods are written "name(sig)" when
// declared and "Class.name(sig)" when referenced.
type Fixture struct {
	SystemLoader string         `yaml:"system_loader"`
	Loaders      []string       `yaml:"loaders"`
	ObjectClass  string         `yaml:"object_class"`
	ClassClass   string         `yaml:"class_class"`
	Classes      []FixtureClass `yaml:"classes"`
}

type FixtureClass struct {
	Name        string                      `yaml:"name"`
	Loader      string                      `yaml:"loader"`
	Super       string                      `yaml:"super"`
	Interfaces  []string                    `yaml:"interfaces"`
	Component   string                      `yaml:"component"`
	Interface   bool                        `yaml:"interface"`
	Initialized bool                        `yaml:"initialized"`
	Methods     []string                    `yaml:"methods"`
	SkipFrames  []string                    `yaml:"skip_frames"`
	VTable      map[int32]string            `yaml:"vtable"`
	Pool        map[uint32]FixturePoolEntry `yaml:"pool"`
	Implementer []string                    `yaml:"implementers"`
}

// FixturePoolEntry carries the resolutions a constant-pool index can
// produce. Absent fields mean "unresolvable under that dispatch".
type FixturePoolEntry struct {
	Class           string `yaml:"class"`
	DefiningInst    string `yaml:"defining_instance"`
	DefiningStatic  string `yaml:"defining_static"`
	StaticHolder    string `yaml:"static_holder"`
	ITableClass     string `yaml:"itable_class"`
	FieldDeclaring  string `yaml:"field_declaring"`
	StaticMethod    string `yaml:"static_method"`
	SpecialMethod   string `yaml:"special_method"`
	VirtualMethod   string `yaml:"virtual_method"`
	ImproperMethod  string `yaml:"improper_method"`
	InterfaceLookup string `yaml:"interface_lookup"`
	InterfaceMethod string `yaml:"interface_method"`
}

// ParseFixture decodes a YAML fixture, rejecting unknown fields.
func ParseFixture(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

// Build resolves a fixture into a Snapshot. Chains interned during a
// previous Build against the same table keep their identity, which is
// how compile and load fixtures share persistent chains.
func Build(fx *Fixture, chains *ChainTable) (*Snapshot, error) {
	s := &Snapshot{
		byName: make(map[classKey]facts.ClassRef),
		chains: chains,
	}

	s.loaders = append(s.loaders, fx.Loaders...)
	if fx.SystemLoader == "" {
		return nil, fmt.Errorf("build fixture: system_loader is required")
	}
	if s.loaderByName(fx.SystemLoader) == 0 {
		s.loaders = append(s.loaders, fx.SystemLoader)
	}
	s.systemLoader = s.loaderByName(fx.SystemLoader)

	// Pass 1: allot class, method and pool handles so later passes can
	// reference classes in any declaration order.
	byFixtureName := make(map[string]facts.ClassRef, len(fx.Classes))
	for _, fc := range fx.Classes {
		if fc.Name == "" {
			return nil, fmt.Errorf("build fixture: class with empty name")
		}
		if _, dup := byFixtureName[fc.Name]; dup {
			return nil, fmt.Errorf("build fixture: duplicate class %q", fc.Name)
		}

		loaderName := fc.Loader
		if loaderName == "" {
			loaderName = fx.SystemLoader
		}
		loader := s.loaderByName(loaderName)
		if loader == 0 {
			return nil, fmt.Errorf("build fixture: class %q: unknown loader %q", fc.Name, loaderName)
		}

		ci := &classInfo{
			name:        fc.Name,
			loader:      loader,
			vtable:      make(map[int32]facts.MethodRef),
			initialized: fc.Initialized,
			isInterface: fc.Interface,
		}
		s.classes = append(s.classes, ci)
		ref := facts.ClassRef(len(s.classes))
		byFixtureName[fc.Name] = ref
		s.byName[classKey{name: fc.Name, loader: loader}] = ref

		s.pools = append(s.pools, &poolInfo{
			owner:   ref,
			entries: make(map[uint32]*poolEntry),
		})
		ci.pool = facts.ConstPoolRef(len(s.pools))

		for _, decl := range fc.Methods {
			name, sig, err := parseDeclaredMethod(decl)
			if err != nil {
				return nil, fmt.Errorf("build fixture: class %q: %w", fc.Name, err)
			}
			s.methods = append(s.methods, &methodInfo{
				name:   name,
				sig:    sig,
				holder: ref,
			})
			ci.methods = append(ci.methods, facts.MethodRef(len(s.methods)))
		}
	}

	classRef := func(name string) (facts.ClassRef, error) {
		if name == "" {
			return 0, nil
		}
		ref, ok := byFixtureName[name]
		if !ok {
			return 0, fmt.Errorf("unknown class %q", name)
		}
		return ref, nil
	}
	methodRef := func(qualified string) (facts.MethodRef, error) {
		if qualified == "" {
			return 0, nil
		}
		className, name, sig, err := parseQualifiedMethod(qualified)
		if err != nil {
			return 0, err
		}
		holder, err := classRef(className)
		if err != nil {
			return 0, err
		}
		ci := s.classAt(holder)
		for _, m := range ci.methods {
			mi := s.methodAt(m)
			if mi.name == name && mi.sig == sig {
				return m, nil
			}
		}
		return 0, fmt.Errorf("class %q declares no method %s%s", className, name, sig)
	}

	// Pass 2: wire the hierarchy, pools and vtables.
	for i, fc := range fx.Classes {
		ci := s.classes[i]
		ref := facts.ClassRef(i + 1)

		var err error
		if ci.super, err = classRef(fc.Super); err != nil {
			return nil, fmt.Errorf("build fixture: class %q: super: %w", fc.Name, err)
		}
		for _, name := range fc.Interfaces {
			iface, err := classRef(name)
			if err != nil {
				return nil, fmt.Errorf("build fixture: class %q: interfaces: %w", fc.Name, err)
			}
			ci.interfaces = append(ci.interfaces, iface)
		}
		if fc.Component != "" {
			comp, err := classRef(fc.Component)
			if err != nil {
				return nil, fmt.Errorf("build fixture: class %q: component: %w", fc.Name, err)
			}
			ci.component = comp
			s.classAt(comp).array = ref
		}
		for _, name := range fc.Implementer {
			impl, err := classRef(name)
			if err != nil {
				return nil, fmt.Errorf("build fixture: class %q: implementers: %w", fc.Name, err)
			}
			ci.implementer = append(ci.implementer, impl)
		}
		for _, decl := range fc.SkipFrames {
			name, sig, err := parseDeclaredMethod(decl)
			if err != nil {
				return nil, fmt.Errorf("build fixture: class %q: skip_frames: %w", fc.Name, err)
			}
			m := s.MethodByNameAndSig(ref, name, sig)
			if m == 0 {
				return nil, fmt.Errorf("build fixture: class %q: skip_frames: no method %s%s", fc.Name, name, sig)
			}
			s.methodAt(m).skipFrames = true
		}
		for offset, qualified := range fc.VTable {
			m, err := methodRef(qualified)
			if err != nil {
				return nil, fmt.Errorf("build fixture: class %q: vtable[%d]: %w", fc.Name, offset, err)
			}
			ci.vtable[offset] = m
		}
		for index, fe := range fc.Pool {
			e := &poolEntry{}
			classFields := []struct {
				dst  *facts.ClassRef
				name string
			}{
				{&e.class, fe.Class},
				{&e.definingInst, fe.DefiningInst},
				{&e.definingStatic, fe.DefiningStatic},
				{&e.staticHolder, fe.StaticHolder},
				{&e.itableClass, fe.ITableClass},
				{&e.fieldDeclaring, fe.FieldDeclaring},
				{&e.interfaceLookup, fe.InterfaceLookup},
			}
			for _, f := range classFields {
				if *f.dst, err = classRef(f.name); err != nil {
					return nil, fmt.Errorf("build fixture: class %q: pool[%d]: %w", fc.Name, index, err)
				}
			}
			methodFields := []struct {
				dst  *facts.MethodRef
				name string
			}{
				{&e.staticMethod, fe.StaticMethod},
				{&e.specialMethod, fe.SpecialMethod},
				{&e.virtualMethod, fe.VirtualMethod},
				{&e.improperMethod, fe.ImproperMethod},
				{&e.interfaceMethod, fe.InterfaceMethod},
			}
			for _, f := range methodFields {
				if *f.dst, err = methodRef(f.name); err != nil {
					return nil, fmt.Errorf("build fixture: class %q: pool[%d]: %w", fc.Name, index, err)
				}
			}
			s.pools[i].entries[index] = e
		}
	}

	var err error
	if s.objectClass, err = classRef(fx.ObjectClass); err != nil {
		return nil, fmt.Errorf("build fixture: object_class: %w", err)
	}
	if s.classClass, err = classRef(fx.ClassClass); err != nil {
		return nil, fmt.Errorf("build fixture: class_class: %w", err)
	}

	return s, nil
}

// MustClass resolves a class by bare name across all loaders, for
// tests and harness scripts that address fixture classes directly.
func (s *Snapshot) MustClass(name string) (facts.ClassRef, error) {
	var found facts.ClassRef
	for i, ci := range s.classes {
		if ci.name == name {
			if found != 0 {
				return 0, fmt.Errorf("class %q is ambiguous across loaders", name)
			}
			found = facts.ClassRef(i + 1)
		}
	}
	if found == 0 {
		return 0, fmt.Errorf("unknown class %q", name)
	}
	return found, nil
}

// MustMethod resolves "Class.name(sig)" the way fixture references do.
func (s *Snapshot) MustMethod(qualified string) (facts.MethodRef, error) {
	className, name, sig, err := parseQualifiedMethod(qualified)
	if err != nil {
		return 0, err
	}
	holder, err := s.MustClass(className)
	if err != nil {
		return 0, err
	}
	for _, m := range s.classAt(holder).methods {
		mi := s.methodAt(m)
		if mi.name == name && mi.sig == sig {
			return m, nil
		}
	}
	return 0, fmt.Errorf("class %q declares no method %s%s", className, name, sig)
}

func parseDeclaredMethod(s string) (name, sig string, err error) {
	paren := strings.IndexByte(s, '(')
	if paren <= 0 {
		return "", "", fmt.Errorf("malformed method %q, want \"name(sig)\"", s)
	}
	return s[:paren], s[paren:], nil
}

func parseQualifiedMethod(s string) (className, name, sig string, err error) {
	paren := strings.IndexByte(s, '(')
	if paren <= 0 {
		return "", "", "", fmt.Errorf("malformed method reference %q, want \"Class.name(sig)\"", s)
	}
	dot := strings.LastIndexByte(s[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return "", "", "", fmt.Errorf("malformed method reference %q, want \"Class.name(sig)\"", s)
	}
	return s[:dot], s[dot+1 : paren], s[paren:], nil
}
