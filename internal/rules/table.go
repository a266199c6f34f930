package rules

import "github.com/awhitfield/invoice-cataloger/constants"

// DefaultTable is the built-in rule set, tuned for Australian vendors.
// Order is deliberate: specific money-movement and subscription rules sit
// above the broad retail rules so "transfer to savings" never lands in
// Shopping and "adobe subscription" never lands in Equipment.
func DefaultTable() Table {
	return Table{
		{Category: constants.Transfer, Keywords: []string{
			"transfer", "bpay", "osko", "pay anyone", "payid",
		}},
		{Category: constants.Income, Keywords: []string{
			"salary", "wages", "payroll", "pay slip", "payslip", "remittance advice",
		}},
		{Category: constants.SoftwareSubscriptions, Keywords: []string{
			"software", "license", "licence", "subscription", "saas", "github",
			"azure", "aws", "jetbrains", "adobe", "npm", "cloud", "hosting",
			"domain", "ssl", "api", "dropbox", "google workspace", "office 365",
			"slack", "zoom", "notion", "figma", "canva", "visual studio",
			"intellij", "pycharm", "webstorm",
		}},
		{Category: constants.ProfessionalDevelopment, Keywords: []string{
			"training", "course", "udemy", "pluralsight", "conference", "seminar",
			"masterclass", "workshop", "certification", "exam", "bootcamp",
			"coursera", "linkedin learning", "skillshare", "codecademy", "datacamp",
		}},
		{Category: constants.ProfessionalMembership, Keywords: []string{
			"membership", "association", "society", "ieee", "acm", "acs",
			"annual fee", "accreditation",
		}},
		{Category: constants.Communications, Keywords: []string{
			"internet", "broadband", "nbn", "telstra", "optus", "vodafone", "tpg",
			"aussie broadband", "superloop", "belong", "iinet", "dodo",
			"mobile plan", "phone", "mobile", "sim", "prepaid", "postpaid",
			"amaysim", "boost", "kogan mobile", "aldi mobile", "voip",
			"ringcentral", "webex",
		}},
		{Category: constants.Utilities, Keywords: []string{
			"electricity", "energy", "power", "agl", "origin", "red energy",
			"simply energy", "alinta", "powershop", "energex", "ausgrid", "ergon",
			"water", "gas", "sewerage", "council rates", "sydney water",
		}},
		{Category: constants.Equipment, Keywords: []string{
			"computer", "laptop", "monitor", "keyboard", "mouse", "macbook",
			"ipad", "tablet", "printer", "scanner", "webcam", "microphone",
			"usb", "ssd", "hard drive", "gpu", "docking station",
			"officeworks", "stationery", "toner", "cartridge", "desk", "chair",
		}},
		{Category: constants.Insurance, Keywords: []string{
			"insurance", "policy", "premium", "income protection",
		}},
		{Category: constants.Health, Keywords: []string{
			"pharmacy", "chemist", "doctor", "medical", "dental", "dentist",
			"optometry", "physio", "hospital", "clinic", "medicare", "prescription",
		}},
		{Category: constants.Transport, Keywords: []string{
			"uber", "taxi", "lyft", "didi", "petrol", "fuel", "parking", "toll",
			"rego", "ctp", "greenslip", "opal", "myki",
		}},
		{Category: constants.BankFees, Keywords: []string{
			"account fee", "transaction fee", "atm fee", "interest charged",
			"card fee", "overdraw",
		}},
		{Category: constants.Dining, Keywords: []string{
			"restaurant", "cafe", "coffee", "catering", "uber eats", "menulog",
			"deliveroo", "doordash", "mcdonald", "kfc", "hungry jack", "domino",
		}},
		{Category: constants.Groceries, Keywords: []string{
			"woolworths", "coles", "aldi", "iga", "grocery", "groceries",
			"supermarket", "foodworks",
		}},
		{Category: constants.Entertainment, Keywords: []string{
			"netflix", "spotify", "disney", "amazon prime", "stan", "binge",
			"kayo", "foxtel", "streaming", "cinema", "concert", "audible",
			"youtube premium", "apple music",
		}},
		{Category: constants.Shopping, Keywords: []string{
			"jb hi-fi", "jb hifi", "harvey norman", "good guys", "bing lee",
			"kmart", "big w", "target", "myer", "david jones", "bunnings",
			"ikea", "amazon", "ebay", "clothing", "footwear",
		}},
	}
}
