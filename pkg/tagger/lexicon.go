package tagger

// Penn Treebank tags produced by the tagger.
const (
	TagDeterminer  = "DT"
	TagPronoun     = "PRP"
	TagPossessive  = "PRP$"
	TagPreposition = "IN"
	TagConjunction = "CC"
	TagModal       = "MD"
	TagTo          = "TO"
	TagExistential = "EX"
	TagWh          = "WP"
	TagAdverb      = "RB"
	TagAdjective   = "JJ"
	TagNumber      = "CD"
	TagNoun        = "NN"
	TagNounPlural  = "NNS"
	TagVerb        = "VB"
	TagVerbPast    = "VBD"
	TagVerbGerund  = "VBG"
	TagVerbPartic  = "VBN"
	TagVerbPresent = "VBP"
	TagVerbThird   = "VBZ"
	TagSentenceEnd = "."
	TagComma       = ","
	TagColon       = ":"
	TagQuote       = "''"
	TagOpenParen   = "("
	TagCloseParen  = ")"
)

// closedClass maps function words to their fixed tag.
var closedClass = map[string]string{
	// Determiners
	"the": TagDeterminer, "a": TagDeterminer, "an": TagDeterminer,
	"this": TagDeterminer, "that": TagDeterminer, "these": TagDeterminer, "those": TagDeterminer,
	"every": TagDeterminer, "each": TagDeterminer, "some": TagDeterminer, "any": TagDeterminer,
	"no": TagDeterminer, "all": TagDeterminer, "another": TagDeterminer,

	// Pronouns
	"i": TagPronoun, "you": TagPronoun, "he": TagPronoun, "she": TagPronoun, "it": TagPronoun,
	"we": TagPronoun, "they": TagPronoun, "me": TagPronoun, "him": TagPronoun, "us": TagPronoun,
	"them": TagPronoun, "myself": TagPronoun, "itself": TagPronoun, "themselves": TagPronoun,
	"my": TagPossessive, "your": TagPossessive, "his": TagPossessive, "her": TagPossessive,
	"its": TagPossessive, "our": TagPossessive, "their": TagPossessive,

	// Prepositions and subordinators
	"in": TagPreposition, "on": TagPreposition, "at": TagPreposition, "of": TagPreposition,
	"for": TagPreposition, "with": TagPreposition, "from": TagPreposition, "by": TagPreposition,
	"about": TagPreposition, "into": TagPreposition, "over": TagPreposition, "under": TagPreposition,
	"after": TagPreposition, "before": TagPreposition, "as": TagPreposition, "than": TagPreposition,
	"if": TagPreposition, "because": TagPreposition, "while": TagPreposition, "through": TagPreposition,
	"between": TagPreposition, "without": TagPreposition, "until": TagPreposition, "like": TagPreposition,

	// Conjunctions
	"and": TagConjunction, "or": TagConjunction, "but": TagConjunction, "nor": TagConjunction,
	"so": TagConjunction, "yet": TagConjunction,

	// Modals
	"can": TagModal, "could": TagModal, "will": TagModal, "would": TagModal, "shall": TagModal,
	"should": TagModal, "may": TagModal, "might": TagModal, "must": TagModal,

	"to":    TagTo,
	"there": TagExistential,

	"who": TagWh, "whom": TagWh, "what": TagWh, "which": TagWh,

	// Auxiliaries and common irregular verbs
	"is": TagVerbThird, "has": TagVerbThird, "does": TagVerbThird, "says": TagVerbThird,
	"are": TagVerbPresent, "am": TagVerbPresent, "have": TagVerbPresent, "do": TagVerbPresent,
	"was": TagVerbPast, "were": TagVerbPast, "had": TagVerbPast, "did": TagVerbPast,
	"said": TagVerbPast, "went": TagVerbPast, "came": TagVerbPast, "saw": TagVerbPast,
	"made": TagVerbPast, "took": TagVerbPast, "knew": TagVerbPast, "thought": TagVerbPast,
	"be": TagVerb, "go": TagVerb, "get": TagVerb, "make": TagVerb, "see": TagVerb,
	"been": TagVerbPartic, "being": TagVerbGerund,

	// Adverbs
	"not": TagAdverb, "very": TagAdverb, "too": TagAdverb, "also": TagAdverb, "just": TagAdverb,
	"never": TagAdverb, "always": TagAdverb, "often": TagAdverb, "here": TagAdverb,
	"now": TagAdverb, "then": TagAdverb, "still": TagAdverb, "again": TagAdverb, "soon": TagAdverb,

	// Punctuation
	".": TagSentenceEnd, "!": TagSentenceEnd, "?": TagSentenceEnd,
	",": TagComma, ";": TagColon, ":": TagColon, `"`: TagQuote,
	"(": TagOpenParen, ")": TagCloseParen,
}

// suffixRule assigns tag to open-class words ending in suffix. Rules are tried
// in order, so longer and more specific suffixes come first.
type suffixRule struct {
	suffix string
	tag    string
}

var suffixRules = []suffixRule{
	{"ness", TagNoun},
	{"ment", TagNoun},
	{"tion", TagNoun},
	{"sion", TagNoun},
	{"ity", TagNoun},
	{"ship", TagNoun},
	{"ing", TagVerbGerund},
	{"ous", TagAdjective},
	{"ful", TagAdjective},
	{"less", TagAdjective},
	{"able", TagAdjective},
	{"ible", TagAdjective},
	{"ive", TagAdjective},
	{"ical", TagAdjective},
	{"ic", TagAdjective},
	{"al", TagAdjective},
	{"ly", TagAdverb},
	{"ed", TagVerbPast},
	{"ss", TagNoun},
	{"s", TagNounPlural},
}
