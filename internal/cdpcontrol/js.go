package cdpcontrol

import (
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// jsElement resolves the element id into el, or returns TARGET_NOT_FOUND.
const jsElement = `
var el = document.getElementById(id);
if (!el) return JSON.stringify({ok:false,error_code:"` + chart.CodeTargetNotFound + `",error_message:"element not found: " + id});`

func jsElementWidth(id string) string {
	return wrapJSEval(fmt.Sprintf(`var id = %s;`, jsString(id)) + jsElement + `
return JSON.stringify({ok:true,data:{width:el.clientWidth|0}});
`)
}

// jsPlot draws data into the element with the page's uPlot, replacing any
// plot previously drawn there.
func jsPlot(id string, options chart.Options, data []chart.Series) string {
	return wrapJSEval(fmt.Sprintf(`var id = %s;
var opts = %s;
var data = %s;`, jsString(id), jsJSON(options), jsJSON(data)) + jsElement + `
if (typeof uPlot !== "function") return JSON.stringify({ok:false,error_code:"` + chart.CodePlotFailed + `",error_message:"uPlot unavailable"});
var plots = window.__graphviewPlots || (window.__graphviewPlots = {});
if (plots[id] && typeof plots[id].destroy === "function") { try { plots[id].destroy(); } catch(_) {} }
el.innerHTML = "";
plots[id] = new uPlot(opts, data, el);
return JSON.stringify({ok:true,data:{plotted:true}});
`)
}

func jsDisableControl(id string) string {
	return wrapJSEval(fmt.Sprintf(`var id = %s;
var el = document.getElementById(id);
if (!el) return JSON.stringify({ok:true,data:{found:false}});
el.disabled = true;
el.setAttribute("disabled", "disabled");
return JSON.stringify({ok:true,data:{found:true}});
`, jsString(id)))
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func buildIIFE(body string) string {
	return "(function(){\n" + `try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + chart.CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

func wrapJSEval(body string) string { return buildIIFE(body) }
