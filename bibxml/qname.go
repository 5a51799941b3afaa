package bibxml

// Namespace URIs used by Alma-D Dublin Core records. The record wrapper
// namespace shows up in various broken forms in the wild (declared as a
// default namespace, bound to generated prefixes like ns0), which the
// normalizer flattens back to what the Alma write API accepts.
const (
	NSDC       = "http://purl.org/dc/elements/1.1/"
	NSDCTerms  = "http://purl.org/dc/terms/"
	NSRecord   = "http://www.exlibrisgroup.com/dps/dc01"
	NSXmlBeans = "http://com/exlibris/urm/general/xmlbeans"
)

// wellKnownPrefixes maps textual prefixes to namespace URIs for documents
// that use a prefix without declaring it. Some Alma-D records lack the
// declarations entirely.
var wellKnownPrefixes = map[string]string{
	"dc":      NSDC,
	"dcterms": NSDCTerms,
	"xb":      NSXmlBeans,
}

// expectedPrefixes is the inverse direction: the literal prefix the Alma
// validator expects for each registered vocabulary.
var expectedPrefixes = map[string]string{
	NSDC:      "dc",
	NSDCTerms: "dcterms",
}

// QName identifies a metadata field type by namespace URI and local name,
// independent of the textual prefix any one document uses.
type QName struct {
	Space string // namespace URI
	Local string
}

func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return "{" + q.Space + "}" + q.Local
}

// DC returns the qualified name of a Dublin Core elements field.
func DC(local string) QName {
	return QName{Space: NSDC, Local: local}
}

// DCTerms returns the qualified name of a Dublin Core terms field.
func DCTerms(local string) QName {
	return QName{Space: NSDCTerms, Local: local}
}
