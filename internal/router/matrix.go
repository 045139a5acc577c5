package router

// Mode is a named cost/speed/quality policy selecting which capability
// mapping to use.
type Mode string

// Execution modes.
const (
	ModeBalanced     Mode = "balanced"
	ModeSuperSaver   Mode = "super-saver"
	ModeFastDelivery Mode = "fast-delivery"
)

// ParseMode validates a mode string, defaulting to balanced.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeBalanced, ModeSuperSaver, ModeFastDelivery:
		return Mode(s)
	}
	return ModeBalanced
}

// ModelRef names a model and the provider whose quota governs it.
type ModelRef struct {
	Model    string
	Provider string
}

// Route is one capability-matrix cell: a primary model and its ordered
// fallbacks.
type Route struct {
	Primary   ModelRef
	Fallbacks []ModelRef
}

// Model catalog. Providers match the quota tracker's provider ids.
var (
	opus        = ModelRef{Model: "claude-opus-4", Provider: "anthropic"}
	sonnet      = ModelRef{Model: "claude-sonnet-4", Provider: "anthropic"}
	haiku       = ModelRef{Model: "claude-3-5-haiku", Provider: "anthropic"}
	gpt41       = ModelRef{Model: "gpt-4.1", Provider: "openai"}
	gpt41Mini   = ModelRef{Model: "gpt-4.1-mini", Provider: "openai"}
	o3          = ModelRef{Model: "o3", Provider: "openai"}
	geminiPro   = ModelRef{Model: "gemini-2.5-pro", Provider: "google"}
	geminiFlash = ModelRef{Model: "gemini-2.5-flash", Provider: "google"}
	qwenCoder   = ModelRef{Model: "qwen2.5-coder", Provider: "local"}
)

func route(primary ModelRef, fallbacks ...ModelRef) Route {
	return Route{Primary: primary, Fallbacks: fallbacks}
}

// routingTable is the capability matrix: one mapping per execution mode,
// each covering every task type. Kept as data so tie-break and fallback
// logic stays in one place.
var routingTable = map[Mode]map[TaskType]Route{
	ModeBalanced: {
		TaskComplexIntegration: route(opus, sonnet, gpt41, geminiPro),
		TaskMathematical:       route(o3, opus, geminiPro),
		TaskBackendAPI:         route(sonnet, gpt41, geminiPro),
		TaskBackendLogic:       route(sonnet, gpt41, geminiPro),
		TaskFrontendUI:         route(sonnet, geminiPro, gpt41),
		TaskFrontendLogic:      route(sonnet, gpt41, geminiFlash),
		TaskDatabase:           route(sonnet, gpt41, geminiPro),
		TaskTesting:            route(sonnet, haiku, geminiFlash),
		TaskDocumentation:      route(haiku, geminiFlash, gpt41Mini),
		TaskRefactoring:        route(sonnet, gpt41, haiku),
		TaskBugfix:             route(sonnet, opus, gpt41),
		TaskDevOps:             route(sonnet, gpt41, geminiFlash),
		TaskConfig:             route(haiku, geminiFlash, gpt41Mini),
		TaskUnknown:            route(sonnet, gpt41, geminiPro),
	},
	// super-saver prefers the cheapest capable model per task type, except
	// where a quality floor forces an upgrade (complex integration, math,
	// bugfix fallback).
	ModeSuperSaver: {
		TaskComplexIntegration: route(sonnet, geminiPro, gpt41),
		TaskMathematical:       route(geminiPro, o3, sonnet),
		TaskBackendAPI:         route(haiku, geminiFlash, gpt41Mini),
		TaskBackendLogic:       route(haiku, geminiFlash, gpt41Mini),
		TaskFrontendUI:         route(geminiFlash, haiku, gpt41Mini),
		TaskFrontendLogic:      route(haiku, geminiFlash, gpt41Mini),
		TaskDatabase:           route(haiku, geminiFlash, sonnet),
		TaskTesting:            route(qwenCoder, haiku, geminiFlash),
		TaskDocumentation:      route(qwenCoder, haiku, geminiFlash),
		TaskRefactoring:        route(haiku, geminiFlash, sonnet),
		TaskBugfix:             route(haiku, sonnet, geminiFlash),
		TaskDevOps:             route(haiku, geminiFlash, gpt41Mini),
		TaskConfig:             route(qwenCoder, haiku, geminiFlash),
		TaskUnknown:            route(haiku, geminiFlash, gpt41Mini),
	},
	// fast-delivery prefers the most capable model regardless of cost.
	ModeFastDelivery: {
		TaskComplexIntegration: route(opus, gpt41, geminiPro),
		TaskMathematical:       route(o3, opus, geminiPro),
		TaskBackendAPI:         route(opus, sonnet, gpt41),
		TaskBackendLogic:       route(opus, sonnet, gpt41),
		TaskFrontendUI:         route(opus, sonnet, geminiPro),
		TaskFrontendLogic:      route(opus, sonnet, gpt41),
		TaskDatabase:           route(opus, sonnet, gpt41),
		TaskTesting:            route(sonnet, gpt41, geminiPro),
		TaskDocumentation:      route(sonnet, gpt41, geminiPro),
		TaskRefactoring:        route(opus, sonnet, gpt41),
		TaskBugfix:             route(opus, sonnet, gpt41),
		TaskDevOps:             route(sonnet, opus, gpt41),
		TaskConfig:             route(sonnet, gpt41, geminiFlash),
		TaskUnknown:            route(opus, sonnet, gpt41),
	},
}

// routeFor looks up the matrix cell for (mode, taskType), defaulting to the
// mode's unknown row.
func routeFor(mode Mode, taskType TaskType) Route {
	table, ok := routingTable[mode]
	if !ok {
		table = routingTable[ModeBalanced]
	}
	if r, ok := table[taskType]; ok {
		return r
	}
	return table[TaskUnknown]
}
