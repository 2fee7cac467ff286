package lang

// names maps every known ISO 639-1 code to its English display name.
// The set matches the languages accepted by the dictionary translator.
var names = map[string]string{
	"af": "Afrikaans",
	"am": "Amharic",
	"ar": "Arabic",
	"az": "Azerbaijani",
	"be": "Belarusian",
	"bg": "Bulgarian",
	"bn": "Bengali",
	"bs": "Bosnian",
	"ca": "Catalan",
	"co": "Corsican",
	"cs": "Czech",
	"cy": "Welsh",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"eo": "Esperanto",
	"es": "Spanish",
	"et": "Estonian",
	"eu": "Basque",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"fy": "Frisian",
	"ga": "Irish",
	"gd": "Scots Gaelic",
	"gl": "Galician",
	"gu": "Gujarati",
	"ha": "Hausa",
	"he": "Hebrew",
	"hi": "Hindi",
	"hr": "Croatian",
	"ht": "Haitian Creole",
	"hu": "Hungarian",
	"hy": "Armenian",
	"id": "Indonesian",
	"ig": "Igbo",
	"is": "Icelandic",
	"it": "Italian",
	"ja": "Japanese",
	"jw": "Javanese",
	"ka": "Georgian",
	"kk": "Kazakh",
	"km": "Khmer",
	"kn": "Kannada",
	"ko": "Korean",
	"ku": "Kurdish (Kurmanji)",
	"ky": "Kyrgyz",
	"la": "Latin",
	"lb": "Luxembourgish",
	"lo": "Lao",
	"lt": "Lithuanian",
	"lv": "Latvian",
	"mg": "Malagasy",
	"mk": "Macedonian",
	"ml": "Malayalam",
	"mn": "Mongolian",
	"mr": "Marathi",
	"ms": "Malay",
	"mt": "Maltese",
	"my": "Myanmar (Burmese)",
	"ne": "Nepali",
	"nl": "Dutch",
	"no": "Norwegian",
	"ny": "Chichewa",
	"or": "Odia (Oriya)",
	"pa": "Punjabi",
	"pl": "Polish",
	"ps": "Pashto",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"rw": "Kinyarwanda",
	"sd": "Sindhi",
	"si": "Sinhala",
	"sk": "Slovak",
	"sl": "Slovenian",
	"sm": "Samoan",
	"sn": "Shona",
	"so": "Somali",
	"sq": "Albanian",
	"sr": "Serbian",
	"st": "Sesotho",
	"su": "Sundanese",
	"sv": "Swedish",
	"sw": "Swahili",
	"ta": "Tamil",
	"te": "Telugu",
	"tg": "Tajik",
	"th": "Thai",
	"tk": "Turkmen",
	"tl": "Filipino",
	"tr": "Turkish",
	"tt": "Tatar",
	"ug": "Uyghur",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"uz": "Uzbek",
	"vi": "Vietnamese",
	"xh": "Xhosa",
	"yi": "Yiddish",
	"yo": "Yoruba",
	"zh": "Chinese (Simplified)",
	"zu": "Zulu",
}

// aliases maps names reported by recognition engines that differ from
// the display names above.
var aliases = map[string]string{
	"burmese":   "my",
	"chinese":   "zh",
	"filipino":  "tl",
	"javanese":  "jw",
	"mandarin":  "zh",
	"myanmar":   "my",
	"scots":     "gd",
	"sinhalese": "si",
	"tagalog":   "tl",
	"valencian": "ca",
	"flemish":   "nl",
	"castilian": "es",
	"pushto":    "ps",
	"moldavian": "ro",
	"moldovan":  "ro",
}
