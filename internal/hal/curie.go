package hal

// Namespace is the CURIE prefix used for every relation this service defines.
const Namespace = "tiddlyweb"

// Curie lets HAL clients expand tiddlyweb:* relations into documentation URIs.
// It is shared by every document and must not be modified.
var Curie = MustLink("curie", "http://tiddlyweb.com/relations/{rel}", Attrs{
	"templated": true,
	"name":      Namespace,
})

// Rel returns the namespaced relation for name, e.g. Rel("bags") is
// "tiddlyweb:bags".
func Rel(name string) string {
	return Namespace + ":" + name
}
