package bpmnxml_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/graph"
	"github.com/duragraph/duragraph/internal/infrastructure/bpmnxml"
)

const sequentialXML = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                   xmlns:camunda="http://camunda.org/schema/1.0/bpmn">
  <bpmn:process id="order" name="Order process">
    <bpmn:startEvent id="start" />
    <bpmn:userTask id="review" name="Review order">
      <bpmn:extensionElements>
        <camunda:formField id="approved" type="boolean" label="Approved?">
          <camunda:property id="rows" value="1" />
          <camunda:constraint name="required" config="true" />
        </camunda:formField>
      </bpmn:extensionElements>
      <bpmn:documentation>Manual review step</bpmn:documentation>
    </bpmn:userTask>
    <bpmn:serviceTask id="notify">
      <bpmn:extensionElements>
        <camunda:inputOutput>
          <camunda:outputParameter name="ticket_id" />
        </camunda:inputOutput>
        <camunda:connector>
          <camunda:connectorId>http-connector</camunda:connectorId>
          <camunda:inputOutput>
            <camunda:inputParameter name="method">POST</camunda:inputParameter>
            <camunda:inputParameter name="url">/tickets</camunda:inputParameter>
            <camunda:inputParameter name="url_parameter">
              <camunda:map>
                <camunda:entry key="order_id">${order_id}</camunda:entry>
              </camunda:map>
            </camunda:inputParameter>
          </camunda:inputOutput>
        </camunda:connector>
      </bpmn:extensionElements>
    </bpmn:serviceTask>
    <bpmn:exclusiveGateway id="gw" default="toT2">
    </bpmn:exclusiveGateway>
    <bpmn:endEvent id="end" />
    <bpmn:sequenceFlow id="f1" sourceRef="start" targetRef="review" />
    <bpmn:sequenceFlow id="f2" sourceRef="review" targetRef="notify" />
    <bpmn:sequenceFlow id="f3" sourceRef="notify" targetRef="gw" />
    <bpmn:sequenceFlow id="toT1" sourceRef="gw" targetRef="end">
      <bpmn:conditionExpression>${approved} == true</bpmn:conditionExpression>
    </bpmn:sequenceFlow>
    <bpmn:sequenceFlow id="toT2" sourceRef="gw" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

const collaborationXML = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                   xmlns:camunda="http://camunda.org/schema/1.0/bpmn">
  <bpmn:process id="helper" name="Helper">
    <bpmn:startEvent id="hstart" />
    <bpmn:endEvent id="hend" />
    <bpmn:sequenceFlow id="hf1" sourceRef="hstart" targetRef="hend" />
  </bpmn:process>
  <bpmn:process id="main" name="Main">
    <bpmn:extensionElements>
      <camunda:properties>
        <camunda:property name="is_main" value="True" />
      </camunda:properties>
    </bpmn:extensionElements>
    <bpmn:startEvent id="mstart" />
    <bpmn:endEvent id="mend" />
    <bpmn:sequenceFlow id="mf1" sourceRef="mstart" targetRef="mend" />
  </bpmn:process>
</bpmn:definitions>`

func TestParse_SingleProcess_BuildsModelWithAllVertexKinds(t *testing.T) {
	m, err := bpmnxml.Parse([]byte(sequentialXML))
	require.NoError(t, err)
	require.Equal(t, "order", m.ProcessID)
	require.Len(t, m.StartEvents, 1)

	review, ok := m.Vertex("review")
	require.True(t, ok)
	require.Equal(t, graph.KindUserTask, review.Kind)
	require.Equal(t, "boolean", review.FormFields["approved"].Type)
	require.Equal(t, "1", review.FormFields["approved"].Properties["rows"])
	require.Equal(t, "true", review.FormFields["approved"].Validation["required"])
	require.Equal(t, "Manual review step", review.Documentation)

	notify, ok := m.Vertex("notify")
	require.True(t, ok)
	require.Equal(t, graph.KindServiceTask, notify.Kind)
	require.Contains(t, notify.OutputVariables, "ticket_id")
	require.Equal(t, "http-connector", notify.Connector.ID)
	require.Equal(t, "POST", notify.Connector.Method)
	require.Equal(t, "/tickets", notify.Connector.URL)
	require.Equal(t, "${order_id}", notify.Connector.URLParams["order_id"])

	gw, ok := m.Vertex("gw")
	require.True(t, ok)
	require.Equal(t, "toT2", gw.DefaultEdge)
}

func TestParse_Collaboration_SelectsProcessFlaggedIsMain(t *testing.T) {
	m, err := bpmnxml.Parse([]byte(collaborationXML))
	require.NoError(t, err)
	require.Equal(t, "main", m.ProcessID)
}

func TestParse_MalformedXML_ReturnsParseError(t *testing.T) {
	_, err := bpmnxml.Parse([]byte("<not-xml"))
	require.Error(t, err)
}

func TestParse_ParallelGateway_IncomingCountMatchesFlowCount(t *testing.T) {
	const xml = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <bpmn:process id="fork_join" name="Fork join">
    <bpmn:startEvent id="start" />
    <bpmn:parallelGateway id="fork" />
    <bpmn:task id="a" />
    <bpmn:task id="b" />
    <bpmn:parallelGateway id="join" />
    <bpmn:endEvent id="end" />
    <bpmn:sequenceFlow id="f0" sourceRef="start" targetRef="fork" />
    <bpmn:sequenceFlow id="f1" sourceRef="fork" targetRef="a" />
    <bpmn:sequenceFlow id="f2" sourceRef="fork" targetRef="b" />
    <bpmn:sequenceFlow id="f3" sourceRef="a" targetRef="join" />
    <bpmn:sequenceFlow id="f4" sourceRef="b" targetRef="join" />
    <bpmn:sequenceFlow id="f5" sourceRef="join" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

	m, err := bpmnxml.Parse([]byte(xml))
	require.NoError(t, err)

	join, ok := m.Vertex("join")
	require.True(t, ok)
	require.Equal(t, 2, join.IncomingCount)
}
