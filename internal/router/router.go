// Package router maps decision types to the agent type authorized to resolve them.
//
// The table is fixed at compile time. Decision types that are not listed fall
// back to DefaultAgentType so that every request reaches some agent; whether a
// live agent of that type exists is checked later by the processor.
package router

import "sort"

// DefaultAgentType receives decision types that are not in the table.
const DefaultAgentType = "CTO"

// Agent types known to the router.
const (
	AgentCEO                = "CEO"
	AgentCTO                = "CTO"
	AgentCFO                = "CFO"
	AgentCOO                = "COO"
	AgentLegal              = "Legal"
	AgentProjectManager     = "ProjectManager"
	AgentMarketing          = "Marketing"
	AgentSales              = "Sales"
	AgentSEO                = "SEO"
	AgentASEO               = "ASEO"
	AgentAGO                = "AGO"
	AgentContentProduction  = "ContentProduction"
	AgentVideoProduction    = "VideoProduction"
	AgentAudioProduction    = "AudioProduction"
	AgentDataAnalytics      = "DataAnalytics"
	AgentCustomerSupport    = "CustomerSupport"
	AgentProductManagement  = "ProductManagement"
	AgentGrowthHacking      = "GrowthHacking"
	AgentSOPSystemsEngineer = "SOPSystemsEngineer"
)

// groups lists the decision types each agent type owns.
var groups = map[string][]string{
	AgentCEO: {
		"business_strategy", "market_analysis", "roi_assessment",
		"partnership_evaluation", "strategic_planning", "company_vision",
	},
	AgentCTO: {
		"technical_architecture", "technology_selection", "security_strategy",
		"infrastructure_planning", "code_review_policy", "technical_debt",
	},
	AgentCFO: {
		"budget_allocation", "financial_planning", "investment_analysis",
		"pricing_strategy", "cost_optimization", "invoice_approval",
	},
	AgentCOO: {
		"operations_planning", "resource_allocation", "process_optimization",
		"vendor_management", "capacity_planning",
	},
	AgentLegal: {
		"contract_review", "compliance_check", "legal_risk_assessment",
		"intellectual_property", "privacy_policy",
	},
	AgentProjectManager: {
		"project_planning", "timeline_adjustment", "task_prioritization",
		"milestone_review", "project_assignment",
	},
	AgentMarketing: {
		"marketing_campaign", "brand_strategy", "market_positioning",
		"audience_targeting",
	},
	AgentSales: {
		"sales_strategy", "deal_approval", "lead_qualification", "sales_forecast",
	},
	AgentSEO: {
		"seo_strategy", "keyword_research", "technical_seo", "link_building",
	},
	AgentASEO: {
		"app_store_optimization", "app_keyword_strategy", "app_listing_review",
	},
	AgentAGO: {
		"ai_search_optimization", "generative_engine_optimization", "llm_visibility",
	},
	AgentContentProduction: {
		"content_strategy", "content_calendar", "editorial_review",
	},
	AgentVideoProduction: {
		"video_production", "video_script_approval", "video_distribution",
	},
	AgentAudioProduction: {
		"audio_production", "podcast_planning", "voiceover_approval",
	},
	AgentDataAnalytics: {
		"data_analysis", "metrics_definition", "reporting_requirements",
		"dashboard_design",
	},
	AgentCustomerSupport: {
		"support_escalation", "customer_feedback_review", "refund_approval",
	},
	AgentProductManagement: {
		"feature_prioritization", "product_roadmap", "user_research",
	},
	AgentGrowthHacking: {
		"growth_experiment", "viral_loop_design", "acquisition_channel",
	},
	AgentSOPSystemsEngineer: {
		"sop_creation", "sop_review", "process_documentation",
	},
}

// routes is the inverted table, built once at init.
var routes = func() map[string]string {
	m := make(map[string]string)
	for agentType, decisionTypes := range groups {
		for _, dt := range decisionTypes {
			m[dt] = agentType
		}
	}
	return m
}()

// RouteFor returns the agent type that resolves decisionType.
// Unknown types are routed to DefaultAgentType.
func RouteFor(decisionType string) string {
	agentType, _ := Lookup(decisionType)
	return agentType
}

// Lookup is RouteFor that also reports whether decisionType was in the table.
// When ok is false the returned agent type is the fallback.
func Lookup(decisionType string) (agentType string, ok bool) {
	if agentType, ok = routes[decisionType]; ok {
		return agentType, true
	}
	return DefaultAgentType, false
}

// AgentTypes returns every agent type that owns at least one decision type, sorted.
func AgentTypes() []string {
	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DecisionTypes returns the decision types owned by agentType, in table order.
func DecisionTypes(agentType string) []string {
	return append([]string(nil), groups[agentType]...)
}

// Route is a single row of the routing table.
type Route struct {
	DecisionType string
	AgentType    string
}

// Routes returns the full table sorted by agent type, then decision type.
func Routes() []Route {
	out := make([]Route, 0, len(routes))
	for dt, at := range routes {
		out = append(out, Route{DecisionType: dt, AgentType: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentType != out[j].AgentType {
			return out[i].AgentType < out[j].AgentType
		}
		return out[i].DecisionType < out[j].DecisionType
	})
	return out
}
