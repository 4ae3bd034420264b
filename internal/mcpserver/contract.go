package mcpserver

// RelationsURI is the resource URI of RelationsContract.
const RelationsURI = "tiddlyweb://relations"

// RelationsContract documents the link relations found in the HAL documents
// returned by every tool. Clients follow links by relation, not by building
// URLs.
const RelationsContract = `# tiddlyweb link relations

Every document is HAL (application/hal+json): data fields, a "_links" object
and, for collections, an "_embedded" object. Relations in the "tiddlyweb"
namespace are compact URIs; the "curie" link expands them to
http://tiddlyweb.com/relations/{rel}.

| relation | found on | target |
|---|---|---|
| self | everything except search results | this document |
| tiddlyweb:bags | root, bag | the bag collection |
| tiddlyweb:recipes | root, recipe | the recipe collection |
| tiddlyweb:search | root | search, templated {?q} |
| tiddlyweb:bag | bag collection (templated), tiddler, tiddler collection | a bag |
| tiddlyweb:recipe | recipe collection (templated), tiddler, tiddler collection | a recipe |
| tiddlyweb:tiddlers | bag, recipe, tiddler | the container's tiddlers |
| tiddlyweb:tiddler | tiddler collection (templated), revision, revision list | a tiddler |
| tiddlyweb:revisions | revision | the tiddler's revision list |
| collection | tiddler, revision | the enclosing collection |
| latest-version | revision | the current tiddler |

Embedded members are keyed by tiddlyweb:bag, tiddlyweb:recipe,
tiddlyweb:tiddler (listings and search) or tiddlyweb:revision (revision lists).

Templated links (` + "`" + `"templated": true` + "`" + `) are RFC 6570 URI templates; expand
them with the named variable, e.g. {bag} or {tiddler}, or pass them to the
expand_link tool.

Tiddler "text" is base64 when the tiddler type is binary (anything other than
text/*, *json, *xml, *javascript or empty).
`
