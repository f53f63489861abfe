package catalog

import "github.com/JakeFAU/signal-news/internal/report"

var dailyNews = []report.NewsItem{
	{
		ID:       "1",
		Title:    "AI Breakthrough in Medical Diagnosis",
		Summary:  "New machine learning model achieves 95% accuracy in early cancer detection, potentially revolutionizing healthcare screening.",
		Source:   "TechHealth Today",
		Category: "Technology",
		URL:      "https://example.com/ai-medical-breakthrough",
	},
	{
		ID:       "2",
		Title:    "Climate Summit Reaches Historic Agreement",
		Summary:  "World leaders commit to ambitious carbon reduction targets, marking a significant step in global climate action.",
		Source:   "Global News Network",
		Category: "Environment",
		URL:      "https://example.com/climate-summit-agreement",
	},
	{
		ID:       "3",
		Title:    "Cryptocurrency Market Sees Major Shift",
		Summary:  "Bitcoin and Ethereum experience significant volatility as new regulations are announced across major economies.",
		Source:   "Financial Times",
		Category: "Finance",
		URL:      "https://example.com/crypto-market-shift",
	},
	{
		ID:       "4",
		Title:    "Space Exploration Milestone Achieved",
		Summary:  "NASA's latest mission successfully lands on Mars, bringing new possibilities for interplanetary research.",
		Source:   "Space Today",
		Category: "Science",
		URL:      "https://example.com/mars-mission-success",
	},
	{
		ID:       "5",
		Title:    "Renewable Energy Adoption Accelerates",
		Summary:  "Solar and wind power installations reach record highs as countries push for clean energy transition.",
		Source:   "Energy Weekly",
		Category: "Energy",
		URL:      "https://example.com/renewable-energy-growth",
	},
}

var trendingTopics = []report.TrendingTopic{
	{
		Title:       "AI & Machine Learning",
		Description: "Latest developments in artificial intelligence and machine learning technologies",
		Topic:       "artificial intelligence developments 2024",
		Icon:        "cpu",
	},
	{
		Title:       "Climate Change",
		Description: "Environmental policies, climate action, and sustainability initiatives",
		Topic:       "climate change policies and environmental action 2024",
		Icon:        "leaf",
	},
	{
		Title:       "Cryptocurrency",
		Description: "Digital currency market trends, regulations, and blockchain technology",
		Topic:       "cryptocurrency market trends and regulations",
		Icon:        "dollar",
	},
	{
		Title:       "Global Politics",
		Description: "International relations, diplomacy, and geopolitical developments",
		Topic:       "international politics and diplomatic relations",
		Icon:        "globe",
	},
	{
		Title:       "Renewable Energy",
		Description: "Clean energy innovations, solar power, and sustainable technology",
		Topic:       "renewable energy innovations and adoption",
		Icon:        "zap",
	},
	{
		Title:       "Tech Startups",
		Description: "Emerging technology companies, venture capital, and innovation",
		Topic:       "technology startups and venture capital",
		Icon:        "trending",
	},
	{
		Title:       "Healthcare Innovation",
		Description: "Medical breakthroughs, healthcare technology, and pharmaceutical developments",
		Topic:       "healthcare innovation and medical technology",
		Icon:        "cpu",
	},
	{
		Title:       "Space Exploration",
		Description: "NASA missions, space technology, and astronomical discoveries",
		Topic:       "space exploration and astronomical discoveries",
		Icon:        "globe",
	},
}

var searchQueries = []string{
	"AI healthcare 2024",
	"machine learning medical diagnosis",
	"healthcare AI market trends",
	"AI medical devices FDA approval",
	"artificial intelligence drug discovery",
}

var sources = []report.Source{
	{Title: "AI in Healthcare: 2024 Market Analysis", URL: "https://example.com/ai-healthcare-market-2024", Domain: "healthtech.com"},
	{Title: "FDA Approvals for AI Medical Devices", URL: "https://example.com/fda-ai-approvals", Domain: "fda.gov"},
	{Title: "Machine Learning in Medical Diagnosis", URL: "https://example.com/ml-medical-diagnosis", Domain: "nature.com"},
	{Title: "AI Drug Discovery Breakthroughs", URL: "https://example.com/ai-drug-discovery", Domain: "sciencemag.org"},
	{Title: "Healthcare AI Ethics and Regulation", URL: "https://example.com/healthcare-ai-ethics", Domain: "nejm.org"},
}

var relatedTopics = []string{
	"Machine Learning in Medical Research",
	"AI-Powered Drug Discovery",
	"Healthcare Data Privacy and AI",
	"Robotic Surgery and AI",
	"AI in Mental Health Treatment",
	"Telemedicine and AI Integration",
}

var seedHistory = []report.Summary{
	{
		ID:          "report_1",
		Topic:       "Artificial Intelligence in Healthcare 2024",
		Preferences: report.Preferences{Focus: report.FocusTechnical, Depth: 4, Tone: report.ToneAnalytical},
	},
	{
		ID:          "report_2",
		Topic:       "Climate Change Policies and Environmental Action",
		Preferences: report.Preferences{Focus: report.FocusGeneral, Depth: 3, Tone: report.ToneNeutral},
	},
	{
		ID:          "report_3",
		Topic:       "Cryptocurrency Market Trends and Regulations",
		Preferences: report.Preferences{Focus: report.FocusMarket, Depth: 5, Tone: report.ToneCritical},
	},
}
