package tracer

import (
	"github.com/usefulness/keeper/internal/classfile"
	"github.com/usefulness/keeper/internal/loader"
)

// Origin tells which class set a definition came from.
type Origin uint8

const (
	OriginUnknown Origin = iota
	OriginTarget
	OriginRoot
	OriginLibrary
)

func (o Origin) String() string {
	switch o {
	case OriginTarget:
		return "target"
	case OriginRoot:
		return "root"
	case OriginLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// objectMethods are the members every class inherits from java/lang/Object.
// They are known even when no definition of Object is on any classpath.
var objectMethods = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, sig := range []string{
		"getClass()Ljava/lang/Class;",
		"hashCode()I",
		"equals(Ljava/lang/Object;)Z",
		"clone()Ljava/lang/Object;",
		"toString()Ljava/lang/String;",
		"notify()V",
		"notifyAll()V",
		"wait()V",
		"wait(J)V",
		"wait(JI)V",
		"finalize()V",
	} {
		m[sig] = struct{}{}
	}
	return m
}()

// classpath looks classes up in targets, then roots, then the library.
type classpath struct {
	targets *loader.Index
	roots   *loader.Index
	library *loader.Index
}

func (cp classpath) lookup(name string) (*classfile.ClassDefinition, Origin) {
	if def, ok := cp.targets.Lookup(name); ok {
		return def, OriginTarget
	}
	if def, ok := cp.roots.Lookup(name); ok {
		return def, OriginRoot
	}
	if def, ok := cp.library.Lookup(name); ok {
		return def, OriginLibrary
	}
	return nil, OriginUnknown
}

// walk is the outcome of a member resolution.
type walk struct {
	// declaring is set when a declaration was found.
	declaring string
	origin    Origin
	// touchedTarget records whether any visited class was a target.
	touchedTarget bool
	// open records that the hierarchy left every known class set, so the
	// member may be declared somewhere we cannot see.
	open bool
}

func (w walk) found() bool { return w.declaring != "" }

// visit looks up one class of the hierarchy. It returns nil when the class is
// unknown, marking the walk open unless the class is java/lang/Object.
func (cp classpath) visit(w *walk, name string) (*classfile.ClassDefinition, Origin) {
	def, origin := cp.lookup(name)
	if def == nil {
		if name != classfile.ObjectClass {
			w.open = true
		}
		return nil, OriginUnknown
	}
	if origin == OriginTarget {
		w.touchedTarget = true
	}
	return def, origin
}

func declaredAt(w walk, name string, origin Origin) walk {
	w.declaring = name
	w.origin = origin
	return w
}

// resolveMethod follows JVM method resolution: the class and its superclass
// chain first, then every superinterface breadth-first.
func (cp classpath) resolveMethod(owner, name, desc string) walk {
	var w walk
	visited := make(map[string]struct{})
	var queue []string

	for cls := owner; cls != ""; {
		if _, ok := visited[cls]; ok {
			break
		}
		visited[cls] = struct{}{}
		def, origin := cp.visit(&w, cls)
		if def == nil {
			if cls == classfile.ObjectClass {
				if _, ok := objectMethods[name+desc]; ok {
					return declaredAt(w, cls, OriginLibrary)
				}
			}
			break
		}
		if def.DeclaresMethod(name, desc) {
			return declaredAt(w, cls, origin)
		}
		queue = append(queue, def.Interfaces...)
		cls = def.Super
	}

	for len(queue) > 0 {
		iface := queue[0]
		queue = queue[1:]
		if _, ok := visited[iface]; ok {
			continue
		}
		visited[iface] = struct{}{}
		def, origin := cp.visit(&w, iface)
		if def == nil {
			continue
		}
		if def.DeclaresMethod(name, desc) {
			return declaredAt(w, iface, origin)
		}
		queue = append(queue, def.Interfaces...)
	}
	return w
}

// resolveField follows JVM field resolution: the class, then its
// superinterfaces, then the superclass, repeated up the chain.
func (cp classpath) resolveField(owner, name, desc string) walk {
	var w walk
	visited := make(map[string]struct{})

	for cls := owner; cls != ""; {
		if _, ok := visited[cls]; ok {
			break
		}
		visited[cls] = struct{}{}
		def, origin := cp.visit(&w, cls)
		if def == nil {
			break
		}
		if def.DeclaresField(name, desc) {
			return declaredAt(w, cls, origin)
		}

		queue := append([]string(nil), def.Interfaces...)
		for len(queue) > 0 {
			iface := queue[0]
			queue = queue[1:]
			if _, ok := visited[iface]; ok {
				continue
			}
			visited[iface] = struct{}{}
			idef, iorigin := cp.visit(&w, iface)
			if idef == nil {
				continue
			}
			if idef.DeclaresField(name, desc) {
				return declaredAt(w, iface, iorigin)
			}
			queue = append(queue, idef.Interfaces...)
		}
		cls = def.Super
	}
	return w
}

// resolveLiteral checks only the named class, as for constructors and
// static initializers.
func (cp classpath) resolveLiteral(ref classfile.SymbolReference) walk {
	var w walk
	def, origin := cp.visit(&w, ref.Owner)
	if def == nil {
		return w
	}
	if def.DeclaresMethod(ref.Name, ref.Descriptor) {
		return declaredAt(w, ref.Owner, origin)
	}
	return w
}

func (cp classpath) resolve(ref classfile.SymbolReference) walk {
	switch {
	case ref.Kind == classfile.KindField:
		return cp.resolveField(ref.Owner, ref.Name, ref.Descriptor)
	case ref.Name == "<init>" || ref.Name == "<clinit>":
		return cp.resolveLiteral(ref)
	default:
		return cp.resolveMethod(ref.Owner, ref.Name, ref.Descriptor)
	}
}
