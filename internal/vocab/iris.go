// Package vocab holds the RDF namespace and predicate IRIs used by the
// LOSD feed of the City of Zurich.
package vocab

// Namespace base IRIs.
const (
	Schema  = "http://schema.org/"
	DCTerms = "http://purl.org/dc/terms/"
	DCAT    = "http://www.w3.org/ns/dcat#"
	Void    = "http://rdfs.org/ns/void#"
	Cube    = "https://cube.link/view/"

	// Base is the production namespace of the linked-data service.
	// BaseInteg is the integration environment's variant; dataset graphs
	// from either environment use their own root for custom terms, so
	// both must be checked.
	Base      = "https://ld.stadt-zuerich.ch/"
	BaseInteg = "https://ld.integ.stadt-zuerich.ch/"
)

// schema.org predicates.
const (
	SchemaName             = Schema + "name"
	SchemaAlternateName    = Schema + "alternateName"
	SchemaDescription      = Schema + "description"
	SchemaIdentifier       = Schema + "identifier"
	SchemaKeywords         = Schema + "keywords"
	SchemaPublisher        = Schema + "publisher"
	SchemaIsBasedOn        = Schema + "isBasedOn"
	SchemaDataset          = Schema + "dataset"
	SchemaHasPart          = Schema + "hasPart"
	SchemaTemporalCoverage = Schema + "temporalCoverage"
	SchemaText             = Schema + "text"
)

// Dublin Core predicates.
const (
	DCTIssued   = DCTerms + "issued"
	DCTModified = DCTerms + "modified"
	DCTLicense  = DCTerms + "license"
	DCTFormat   = DCTerms + "format"
	DCTRights   = DCTerms + "rights"
)

// DCAT predicates.
const (
	DCATDistribution = DCAT + "distribution"
	DCATDownloadURL  = DCAT + "downloadURL"
	DCATMediaType    = DCAT + "mediaType"
)

// VoID predicates.
const (
	VoidSparqlEndpoint = Void + "sparqlEndpoint"
)

// cube.link view predicates.
const (
	CubeDimension = Cube + "dimension"
	CubeAs        = Cube + "as"
)

// City of Zurich terms, environment-specific roots.
const (
	LegalFoundation      = Base + "legalFoundation"
	LegalFoundationInteg = BaseInteg + "legalFoundation"
)
