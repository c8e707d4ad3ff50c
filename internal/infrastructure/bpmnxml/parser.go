// Package bpmnxml turns a BPMN 2.0 XML document into a *graph.Model. Model
// construction itself (spec §4.2) treats its input as already parsed
// ("built by the XML parser (external)"); this package is that external
// parser, reading the Camunda extension hooks spec §6 enumerates.
package bpmnxml

import (
	"encoding/xml"
	"fmt"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// node is a generic XML element tree, used instead of tag-specific structs
// because extensionElements nests arbitrarily (camunda:inputOutput,
// camunda:connector, camunda:formField, camunda:list/map) and Go's
// struct-based xml.Unmarshal has no equivalent to ElementTree's free-form
// findall/find used by the original parser.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n node) children(local string) []node {
	var out []node
	for _, c := range n.Nodes {
		if c.XMLName.Local == local {
			out = append(out, c)
		}
	}
	return out
}

func (n node) child(local string) (node, bool) {
	cs := n.children(local)
	if len(cs) == 0 {
		return node{}, false
	}
	return cs[0], true
}

// findAll searches the whole subtree for elements named local, mirroring
// ElementTree's ".//tag" used throughout bpmn_types.py.
func (n node) findAll(local string) []node {
	var out []node
	for _, c := range n.Nodes {
		if c.XMLName.Local == local {
			out = append(out, c)
		}
		out = append(out, c.findAll(local)...)
	}
	return out
}

var taskKinds = map[string]graph.VertexKind{
	"task":             graph.KindTask,
	"manualTask":       graph.KindManualTask,
	"userTask":         graph.KindUserTask,
	"receiveTask":      graph.KindReceiveTask,
	"serviceTask":      graph.KindServiceTask,
	"sendTask":         graph.KindSendTask,
	"businessRuleTask": graph.KindBusinessRule,
	"callActivity":     graph.KindCallActivity,
}

var gatewayKinds = map[string]graph.VertexKind{
	"exclusiveGateway": graph.KindExclusiveGateway,
	"parallelGateway":  graph.KindParallelGateway,
	"inclusiveGateway": graph.KindInclusiveGateway,
}

// Parse reads a BPMN XML document and returns the model designated as the
// entry point: the sole bpmn:process if there is only one, or the process
// flagged is_main=True via camunda:property when several processes share a
// collaboration (spec §4.2 "is_main_in_collaboration").
func Parse(source []byte) (*graph.Model, error) {
	var root node
	if err := xml.Unmarshal(source, &root); err != nil {
		return nil, errors.ParseError("", fmt.Sprintf("malformed BPMN XML: %v", err))
	}

	processes := root.children("process")
	if len(processes) == 0 {
		return nil, errors.ParseError("", "no bpmn:process element found")
	}

	models := make([]*graph.Model, 0, len(processes))
	mains := make([]bool, 0, len(processes))
	for _, p := range processes {
		m, isMain, err := parseProcess(p)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
		mains = append(mains, isMain)
	}

	if len(models) == 1 {
		return models[0], nil
	}

	for i, isMain := range mains {
		if isMain {
			return models[i], nil
		}
	}
	return nil, errors.ParseError("", "collaboration has no process flagged is_main")
}

func parseProcess(p node) (*graph.Model, bool, error) {
	id, _ := p.attr("id")
	name, _ := p.attr("name")

	isMain := false
	if ext, ok := p.child("extensionElements"); ok {
		for _, prop := range ext.findAll("property") {
			propName, _ := prop.attr("name")
			propValue, _ := prop.attr("value")
			if propName == "is_main" && propValue == "True" {
				isMain = true
			}
		}
	}

	elements := map[string]*graph.Vertex{}
	subProcesses := map[string]*graph.Model{}

	for _, child := range p.Nodes {
		local := child.XMLName.Local
		switch {
		case local == "startEvent":
			elements[idOf(child)] = &graph.Vertex{ID: idOf(child), Name: nameOf(child), Kind: graph.KindStartEvent}
		case local == "endEvent":
			elements[idOf(child)] = &graph.Vertex{ID: idOf(child), Name: nameOf(child), Kind: graph.KindEndEvent}
		case taskKinds[local] != "":
			v, err := parseTaskLike(child, taskKinds[local])
			if err != nil {
				return nil, false, err
			}
			elements[v.ID] = v
		case gatewayKinds[local] != "":
			elements[idOf(child)] = parseGateway(child, gatewayKinds[local])
		case local == "subProcess":
			sub, _, err := parseProcess(child)
			if err != nil {
				return nil, false, err
			}
			sub.ProcessID = idOf(child)
			subProcesses[idOf(child)] = sub
		}
	}

	flows, err := parseFlows(p)
	if err != nil {
		return nil, false, err
	}

	setIncomingCounts(elements, flows)

	m, err := graph.New(id, name, isMain, elements, flows, subProcesses)
	if err != nil {
		return nil, false, err
	}
	return m, isMain, nil
}

func idOf(n node) string {
	v, _ := n.attr("id")
	return v
}

func nameOf(n node) string {
	v, _ := n.attr("name")
	return v
}

func parseFlows(p node) ([]*graph.Edge, error) {
	var flows []*graph.Edge
	for _, f := range p.children("sequenceFlow") {
		source, _ := f.attr("sourceRef")
		target, _ := f.attr("targetRef")
		edge := &graph.Edge{ID: idOf(f), Source: source, Target: target}
		if cond, ok := f.child("conditionExpression"); ok {
			edge.Condition = cond.Content
		}
		flows = append(flows, edge)
	}
	return flows, nil
}

func setIncomingCounts(elements map[string]*graph.Vertex, flows []*graph.Edge) {
	counts := map[string]int{}
	for _, f := range flows {
		counts[f.Target]++
	}
	for id, v := range elements {
		if v.Kind == graph.KindParallelGateway {
			v.IncomingCount = counts[id]
		}
	}
}

func parseGateway(n node, kind graph.VertexKind) *graph.Vertex {
	v := &graph.Vertex{ID: idOf(n), Name: nameOf(n), Kind: kind}
	if kind == graph.KindExclusiveGateway || kind == graph.KindInclusiveGateway {
		if def, ok := n.attr("default"); ok {
			v.DefaultEdge = def
		}
	}
	return v
}

func parseTaskLike(n node, kind graph.VertexKind) (*graph.Vertex, error) {
	v := &graph.Vertex{ID: idOf(n), Name: nameOf(n), Kind: kind}

	if d, ok := n.child("documentation"); ok {
		v.Documentation = d.Content
	}

	switch kind {
	case graph.KindUserTask:
		v.FormFields = parseFormFields(n)
	case graph.KindReceiveTask:
		v.InputVariables, v.OutputVariables = parseInputOutput(n)
	case graph.KindServiceTask, graph.KindSendTask, graph.KindBusinessRule:
		v.InputVariables, v.OutputVariables = parseInputOutput(n)
		v.Connector = parseConnector(n)
	case graph.KindCallActivity:
		if ce, ok := n.attr("calledElement"); ok {
			v.CalledElement = ce
		}
		if binding, ok := n.attr("calledElementBinding"); ok && binding == "deployment" {
			v.Deployment = true
		}
		v.InMapping, v.OutMapping = parseInOutMapping(n)
	}

	return v, nil
}

func parseFormFields(n node) map[string]graph.FormField {
	fields := map[string]graph.FormField{}
	for _, f := range n.findAll("formField") {
		id, ok := f.attr("id")
		if !ok {
			continue
		}
		ff := graph.FormField{Properties: map[string]string{}, Validation: map[string]string{}}
		ff.Type, _ = f.attr("type")
		ff.Label, _ = f.attr("label")
		for _, prop := range f.findAll("property") {
			if pid, ok := prop.attr("id"); ok {
				if pval, ok := prop.attr("value"); ok {
					ff.Properties[pid] = pval
				}
			}
		}
		for _, c := range f.findAll("constraint") {
			if cname, ok := c.attr("name"); ok {
				if cconfig, ok := c.attr("config"); ok {
					ff.Validation[cname] = cconfig
				}
			}
		}
		fields[id] = ff
	}
	return fields
}

// parseInputOutput reads the camunda:inputOutput child directly under
// extensionElements (not inside camunda:connector — that is parseConnector's
// job), matching bpmn_types.py's ServiceTask._parse_input_output_variables
// called on the extensionElements node itself.
func parseInputOutput(n node) (map[string]interface{}, map[string]interface{}) {
	ext, ok := n.child("extensionElements")
	if !ok {
		return nil, nil
	}
	io, ok := ext.child("inputOutput")
	if !ok {
		return nil, nil
	}
	return extractParams(io, "inputParameter"), extractParams(io, "outputParameter")
}

func parseConnector(n node) graph.Connector {
	ext, ok := n.child("extensionElements")
	if !ok {
		return graph.Connector{}
	}
	con, ok := ext.child("connector")
	if !ok {
		return graph.Connector{}
	}

	conn := graph.Connector{URLParams: map[string]string{}}
	if id, ok := con.child("connectorId"); ok {
		conn.ID = id.Content
	}

	var inputs map[string]interface{}
	if io, ok := con.child("inputOutput"); ok {
		inputs = extractParams(io, "inputParameter")
	}
	if method, ok := inputs["method"].(string); ok {
		conn.Method = method
	}
	if url, ok := inputs["url"].(string); ok {
		conn.URL = url
	}
	if params, ok := inputs["url_parameter"].(map[string]interface{}); ok {
		for k, v := range params {
			if s, ok := v.(string); ok {
				conn.URLParams[k] = s
			}
		}
	}
	return conn
}

// extractParams reads every inputParameter/outputParameter (by paramTag)
// that is a DIRECT child of an inputOutput or connector element — camunda:
// list (sequence of camunda:value), camunda:map (camunda:entry key=>text),
// or a bare scalar. camunda:script parameters are silently skipped (spec §6
// "script is ignored").
func extractParams(parent node, paramTag string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, p := range parent.children(paramTag) {
		name, ok := p.attr("name")
		if !ok {
			continue
		}
		if list, ok := p.child("list"); ok {
			var vals []string
			for _, v := range list.children("value") {
				vals = append(vals, v.Content)
			}
			out[name] = vals
			continue
		}
		if m, ok := p.child("map"); ok {
			entries := map[string]interface{}{}
			for _, e := range m.children("entry") {
				if key, ok := e.attr("key"); ok {
					entries[key] = e.Content
				}
			}
			out[name] = entries
			continue
		}
		if _, ok := p.child("script"); ok {
			continue
		}
		out[name] = p.Content
	}
	return out
}

func parseInOutMapping(n node) (map[string]string, map[string]string) {
	in := map[string]string{}
	out := map[string]string{}
	for _, e := range n.findAll("in") {
		source, sOk := e.attr("source")
		target, tOk := e.attr("target")
		if sOk && tOk {
			in[source] = target
		}
	}
	for _, e := range n.findAll("out") {
		source, sOk := e.attr("source")
		target, tOk := e.attr("target")
		if sOk && tOk {
			out[source] = target
		}
	}
	return in, out
}
