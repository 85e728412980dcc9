package rewards

// wordList is the target pool for the word-guess game. All entries are
// five lowercase letters, skewed toward classroom vocabulary.
var wordList = []string{
	"about", "above", "actor", "adapt", "added", "admit", "adopt", "after",
	"again", "agent", "agree", "ahead", "alarm", "album", "alert", "alike",
	"alive", "allow", "alone", "along", "amber", "among", "angle", "angry",
	"apple", "apply", "arena", "argue", "arise", "armor", "aside", "asset",
	"atlas", "audio", "avoid", "awake", "award", "aware", "badge", "baker",
	"basic", "batch", "beach", "began", "begin", "being", "below", "bench",
	"berry", "birth", "black", "blame", "blank", "blend", "block", "board",
	"bonus", "boost", "brain", "brand", "brave", "bread", "break", "brick",
	"brief", "bring", "broad", "brown", "brush", "build", "bunch", "buyer",
	"cabin", "cable", "candy", "cargo", "carry", "catch", "cause", "chain",
	"chair", "chalk", "charm", "chart", "chase", "cheap", "check", "chess",
	"chief", "child", "china", "claim", "class", "clean", "clear", "climb",
	"clock", "close", "cloud", "coach", "coast", "coins", "color", "count",
	"court", "cover", "craft", "crane", "cream", "crisp", "crowd", "crown",
	"curve", "cycle", "daily", "dairy", "dance", "dealt", "debit", "delta",
	"dense", "depth", "desks", "diary", "dimes", "dirty", "dozen", "draft",
	"drawn", "dream", "dress", "drink", "drive", "early", "earns", "earth",
	"eight", "elect", "empty", "enjoy", "enter", "equal", "error", "essay",
	"event", "every", "exact", "exams", "exist", "extra", "fable", "facts",
	"fairs", "faith", "false", "fancy", "favor", "fence", "fetch", "field",
	"fifty", "final", "first", "fixed", "flags", "flash", "floor", "flour",
	"focus", "force", "forty", "found", "frame", "fresh", "front", "fruit",
	"funds", "games", "genre", "giant", "given", "glass", "globe", "goals",
	"grade", "grain", "grand", "grant", "graph", "grasp", "great", "green",
	"group", "grown", "guard", "guess", "guide", "habit", "happy", "heart",
	"hello", "hills", "hobby", "honey", "honor", "hotel", "house", "human",
	"ideal", "ideas", "image", "index", "inner", "input", "issue", "items",
	"japan", "jeans", "judge", "juice", "label", "labor", "lakes", "large",
	"later", "laugh", "learn", "lemon", "level", "light", "limit", "lists",
	"loans", "local", "logic", "loose", "lucky", "lunch", "magic", "major",
	"maker", "maple", "march", "match", "maybe", "mayor", "meals", "means",
	"medal", "media", "metal", "meter", "might", "miles", "minor", "minus",
	"model", "money", "month", "moral", "mouse", "movie", "music", "needs",
	"never", "newer", "night", "noble", "noise", "north", "notes", "novel",
	"nurse", "ocean", "offer", "often", "olive", "onion", "order", "other",
	"ought", "owner", "paint", "panel", "paper", "party", "peace", "pears",
	"penny", "phase", "phone", "photo", "piano", "piece", "pilot", "pitch",
	"pizza", "place", "plain", "plane", "plant", "plate", "point", "pound",
	"power", "press", "price", "pride", "prime", "print", "prize", "proof",
	"proud", "prove", "pupil", "queen", "quick", "quiet", "quilt", "quite",
	"radio", "raise", "ranch", "range", "rapid", "ratio", "reach", "ready",
	"repay", "reply", "right", "river", "robot", "rocky", "round", "route",
	"royal", "ruler", "rural", "salad", "sales", "salty", "saved", "scale",
	"scene", "scope", "score", "sense", "serve", "seven", "shape", "share",
	"sharp", "sheet", "shelf", "shine", "shirt", "shoes", "short", "sight",
	"sides", "since", "sixty", "skill", "slice", "small", "smart", "smile",
	"snack", "solar", "solid", "solve", "sound", "south", "space", "spare",
	"speak", "speed", "spell", "spend", "sport", "staff", "stage", "stamp",
	"stand", "start", "state", "steam", "steel", "stick", "still", "stock",
	"stone", "store", "storm", "story", "study", "stuff", "style", "sugar",
	"sunny", "super", "sweet", "table", "taken", "tasks", "taste", "teach",
	"teams", "tells", "thank", "theme", "there", "thing", "think", "third",
	"tiger", "times", "title", "today", "token", "topic", "total", "touch",
	"tough", "towel", "tower", "trace", "track", "trade", "train", "treat",
	"trees", "trend", "trial", "trick", "truck", "trust", "truth", "twice",
	"under", "union", "unite", "until", "upper", "urban", "usage", "usual",
	"value", "video", "visit", "vital", "vocal", "voice", "wages", "waste",
	"watch", "water", "weeks", "wheat", "wheel", "where", "which", "while",
	"white", "whole", "world", "worth", "would", "write", "wrote", "yield",
	"young", "yours", "youth",
}
